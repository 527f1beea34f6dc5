package httpserver

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// The cart lives in an HMAC-signed cookie on the client. It is a convenience
// cache only: checkout re-fetches every price from the database, so a
// tampered cookie can at worst change quantities.

type cartItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Qty       int       `json:"qty"`
}

type cartPayload struct {
	Items []cartItem `json:"items"`
}

type cartLine struct {
	ProductID  uuid.UUID `json:"product_id"`
	Slug       string    `json:"slug"`
	Name       string    `json:"name"`
	Image      string    `json:"image"`
	SKU        string    `json:"sku"`
	Qty        int       `json:"qty"`
	UnitCents  int64     `json:"unit_cents"`
	TotalCents int64     `json:"total_cents"`
}

func (s *Server) readCart(r *http.Request) cartPayload {
	c, err := r.Cookie("cart")
	if err != nil {
		return cartPayload{}
	}
	parts := strings.SplitN(c.Value, ".", 2)
	if len(parts) != 2 {
		return cartPayload{}
	}
	sig, _ := base64.RawURLEncoding.DecodeString(parts[0])
	payload, _ := base64.RawURLEncoding.DecodeString(parts[1])
	h := hmac.New(sha256.New, s.sessionKey)
	h.Write(payload)
	if !hmac.Equal(sig, h.Sum(nil)) {
		return cartPayload{}
	}
	var cp cartPayload
	_ = json.Unmarshal(payload, &cp)
	return cp
}

func (s *Server) writeCart(w http.ResponseWriter, cp cartPayload) {
	b, _ := json.Marshal(cp)
	h := hmac.New(sha256.New, s.sessionKey)
	h.Write(b)
	sig := base64.RawURLEncoding.EncodeToString(h.Sum(nil))
	val := sig + "." + base64.RawURLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{Name: "cart", Value: val, Path: "/", MaxAge: 60 * 60 * 24 * 7, HttpOnly: true})
}

// cartLines re-prices the cookie contents from the catalog, dropping items
// that are gone or inactive.
func (s *Server) cartLines(r *http.Request, cp cartPayload) ([]cartLine, int64) {
	merged := map[uuid.UUID]int{}
	order := []uuid.UUID{}
	for _, it := range cp.Items {
		if it.Qty <= 0 || it.ProductID == uuid.Nil {
			continue
		}
		if _, ok := merged[it.ProductID]; !ok {
			order = append(order, it.ProductID)
		}
		merged[it.ProductID] += it.Qty
	}
	lines := []cartLine{}
	var total int64
	products, err := s.productRepo.FindActiveByIDs(r.Context(), order)
	if err != nil {
		return lines, 0
	}
	byID := map[uuid.UUID]int{}
	for i := range products {
		byID[products[i].ID] = i
	}
	for _, id := range order {
		i, ok := byID[id]
		if !ok {
			continue
		}
		p := products[i]
		qty := merged[id]
		line := cartLine{
			ProductID:  p.ID,
			Slug:       p.Slug,
			Name:       p.Name,
			Image:      p.PrimaryImage(),
			SKU:        p.SKU,
			Qty:        qty,
			UnitCents:  p.PriceCents,
			TotalCents: p.PriceCents * int64(qty),
		}
		total += line.TotalCents
		lines = append(lines, line)
	}
	return lines, total
}

func (s *Server) handleCart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method", 405)
		return
	}
	cp := s.readCart(r)
	lines, total := s.cartLines(r, cp)
	count := 0
	for _, l := range lines {
		count += l.Qty
	}
	writeJSON(w, 200, map[string]any{"items": lines, "total_cents": total, "item_count": count})
}

func (s *Server) handleCartAdd(w http.ResponseWriter, r *http.Request) {
	s.mutateCart(w, r, func(cp *cartPayload, it cartItem) {
		for i := range cp.Items {
			if cp.Items[i].ProductID == it.ProductID {
				cp.Items[i].Qty += it.Qty
				return
			}
		}
		cp.Items = append(cp.Items, it)
	})
}

func (s *Server) handleCartUpdate(w http.ResponseWriter, r *http.Request) {
	s.mutateCart(w, r, func(cp *cartPayload, it cartItem) {
		out := cp.Items[:0]
		for _, existing := range cp.Items {
			if existing.ProductID == it.ProductID {
				existing.Qty = it.Qty
			}
			if existing.Qty > 0 {
				out = append(out, existing)
			}
		}
		cp.Items = out
	})
}

func (s *Server) handleCartRemove(w http.ResponseWriter, r *http.Request) {
	s.mutateCart(w, r, func(cp *cartPayload, it cartItem) {
		out := cp.Items[:0]
		for _, existing := range cp.Items {
			if existing.ProductID != it.ProductID {
				out = append(out, existing)
			}
		}
		cp.Items = out
	})
}

func (s *Server) handleCartClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method", 405)
		return
	}
	s.writeCart(w, cartPayload{})
	writeJSON(w, 200, map[string]any{"items": []cartLine{}, "total_cents": 0, "item_count": 0})
}

func (s *Server) mutateCart(w http.ResponseWriter, r *http.Request, apply func(*cartPayload, cartItem)) {
	if r.Method != http.MethodPost {
		http.Error(w, "method", 405)
		return
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, 2048))
	var it cartItem
	if err := dec.Decode(&it); err != nil {
		http.Error(w, "json", 400)
		return
	}
	if it.ProductID == uuid.Nil {
		http.Error(w, "product_id", 400)
		return
	}
	cp := s.readCart(r)
	apply(&cp, it)
	s.writeCart(w, cp)
	lines, total := s.cartLines(r, cp)
	count := 0
	for _, l := range lines {
		count += l.Qty
	}
	writeJSON(w, 200, map[string]any{"items": lines, "total_cents": total, "item_count": count})
}
