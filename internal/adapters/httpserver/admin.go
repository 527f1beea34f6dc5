package httpserver

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nmoreyra/taller3d/internal/domain"
	"github.com/nmoreyra/taller3d/internal/usecase"
)

const (
	adminCookie   = "t3d_admin"
	adminTokenTTL = 12 * time.Hour
)

type adminClaims struct {
	Sub string `json:"sub"`
	Exp int64  `json:"exp"`
}

func (s *Server) issueAdminToken(sub string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	raw, _ := json.Marshal(adminClaims{Sub: sub, Exp: time.Now().Add(adminTokenTTL).Unix()})
	payload := base64.RawURLEncoding.EncodeToString(raw)
	mac := hmac.New(sha256.New, s.adminSecret)
	mac.Write([]byte(header + "." + payload))
	return header + "." + payload + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (s *Server) verifyAdminToken(token string) (*adminClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, errors.New("malformed token")
	}
	mac := hmac.New(sha256.New, s.adminSecret)
	mac.Write([]byte(parts[0] + "." + parts[1]))
	want := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(want), []byte(parts[2])) {
		return nil, errors.New("bad signature")
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, err
	}
	var c adminClaims
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	if c.Exp < time.Now().Unix() {
		return nil, errors.New("token expired")
	}
	return &c, nil
}

// requireAdmin accepts either the admin cookie or a bearer token, plus a
// logged-in Google session whose email is on the allow list.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	token := ""
	if ck, err := r.Cookie(adminCookie); err == nil {
		token = ck.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		token = strings.TrimPrefix(h, "Bearer ")
	}
	if token != "" {
		if _, err := s.verifyAdminToken(token); err == nil {
			return true
		}
	}
	if u := s.readUserSession(r); u != nil {
		if _, ok := s.adminAllowed[strings.ToLower(u.Email)]; ok {
			return true
		}
	}
	writeJSON(w, 401, map[string]string{"error": "admin authentication required"})
	return false
}

func (s *Server) handleAdminAuth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method", 405)
		return
	}
	var req struct {
		User string `json:"user"`
		Pass string `json:"pass"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1024)).Decode(&req); err != nil {
		http.Error(w, "json", 400)
		return
	}
	if subtleEq(req.User, s.cfg.AdminUser) && subtleEq(req.Pass, s.cfg.AdminPass) {
		token := s.issueAdminToken(req.User)
		http.SetCookie(w, &http.Cookie{
			Name:     adminCookie,
			Value:    token,
			Path:     "/",
			MaxAge:   int(adminTokenTTL.Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
			Secure:   s.cfg.IsProduction(),
		})
		writeJSON(w, 200, map[string]string{"token": token})
		return
	}
	log.Warn().Str("user", req.User).Msg("admin login rejected")
	writeJSON(w, 401, map[string]string{"error": "invalid credentials"})
}

func subtleEq(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}

func (s *Server) adminProducts(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		f := domain.ProductFilter{IncludeInactive: true, Sort: r.URL.Query().Get("sort")}
		if p := r.URL.Query().Get("page"); p != "" {
			if n, err := atoiPositive(p); err == nil {
				f.Page = n
			}
		}
		list, total, err := s.products.List(r.Context(), f)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, 200, map[string]any{"products": list, "total": total})
	case http.MethodPost:
		var p domain.Product
		if err := json.NewDecoder(io.LimitReader(r.Body, 65536)).Decode(&p); err != nil {
			http.Error(w, "json", 400)
			return
		}
		if err := s.products.Create(r.Context(), &p); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, 201, p)
	default:
		http.Error(w, "method", 405)
	}
}

func (s *Server) adminProductBySlug(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/admin/products/")
	slug, action := rest, ""
	if i := strings.Index(rest, "/"); i >= 0 {
		slug, action = rest[:i], rest[i+1:]
	}
	p, err := s.products.GetBySlug(r.Context(), slug)
	if err != nil {
		writeErr(w, err)
		return
	}

	switch {
	case r.Method == http.MethodGet && action == "":
		writeJSON(w, 200, p)
	case r.Method == http.MethodPut && action == "":
		var in domain.Product
		if err := json.NewDecoder(io.LimitReader(r.Body, 65536)).Decode(&in); err != nil {
			http.Error(w, "json", 400)
			return
		}
		in.ID = p.ID
		in.Slug = p.Slug
		if err := s.products.Update(r.Context(), &in); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, 200, in)
	case r.Method == http.MethodDelete && action == "":
		if err := s.products.Deactivate(r.Context(), slug); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, 200, map[string]string{"status": "deactivated"})
	case r.Method == http.MethodPost && action == "images":
		var req struct {
			Images []domain.ProductImage `json:"images"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, 65536)).Decode(&req); err != nil {
			http.Error(w, "json", 400)
			return
		}
		if err := s.products.ClearImages(r.Context(), p.ID); err != nil {
			writeErr(w, err)
			return
		}
		if err := s.products.AddImages(r.Context(), p.ID, req.Images); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, 200, map[string]string{"status": "ok"})
	case r.Method == http.MethodPost && action == "describe":
		s.adminDescribeProduct(w, r, p)
	default:
		http.Error(w, "method", 405)
	}
}

func (s *Server) adminCategories(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		list, err := s.products.ListCategories(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, 200, map[string]any{"categories": list})
	case http.MethodPost, http.MethodPut:
		var c domain.Category
		if err := json.NewDecoder(io.LimitReader(r.Body, 8192)).Decode(&c); err != nil {
			http.Error(w, "json", 400)
			return
		}
		if err := s.products.SaveCategory(r.Context(), &c); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, 200, c)
	case http.MethodDelete:
		id, err := uuid.Parse(r.URL.Query().Get("id"))
		if err != nil {
			http.Error(w, "id", 400)
			return
		}
		if err := s.products.DeleteCategory(r.Context(), id); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, 200, map[string]string{"status": "deleted"})
	default:
		http.Error(w, "method", 405)
	}
}

func (s *Server) adminCoupons(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		list, err := s.couponRepo.List(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, 200, map[string]any{"coupons": list})
	case http.MethodPost:
		var c domain.Coupon
		if err := json.NewDecoder(io.LimitReader(r.Body, 8192)).Decode(&c); err != nil {
			http.Error(w, "json", 400)
			return
		}
		c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
		if c.Code == "" {
			writeErr(w, domain.Validation("code", "coupon code is required"))
			return
		}
		if c.DiscountType != domain.DiscountPercentage && c.DiscountType != domain.DiscountFixed {
			writeErr(w, domain.Validation("discount_type", "must be percentage or fixed_amount"))
			return
		}
		if c.DiscountType == domain.DiscountPercentage && (c.DiscountValue < 1 || c.DiscountValue > 100) {
			writeErr(w, domain.Validation("discount_value", "percentage must be between 1 and 100"))
			return
		}
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		if err := s.couponRepo.Save(r.Context(), &c); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, 201, c)
	default:
		http.Error(w, "method", 405)
	}
}

func (s *Server) adminCouponByID(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	id, _, ok := parseUUIDSuffix(r.URL.Path, "/api/admin/coupons/")
	if !ok {
		http.Error(w, "bad id", 400)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var c domain.Coupon
		if err := json.NewDecoder(io.LimitReader(r.Body, 8192)).Decode(&c); err != nil {
			http.Error(w, "json", 400)
			return
		}
		c.ID = id
		c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
		if err := s.couponRepo.Save(r.Context(), &c); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, 200, c)
	case http.MethodDelete:
		if err := s.couponRepo.Delete(r.Context(), id); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, 200, map[string]string{"status": "deleted"})
	default:
		http.Error(w, "method", 405)
	}
}

func (s *Server) adminShippingRates(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		list, err := s.rateRepo.List(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, 200, map[string]any{"rates": list})
	case http.MethodPost:
		var rate domain.ShippingRate
		if err := json.NewDecoder(io.LimitReader(r.Body, 8192)).Decode(&rate); err != nil {
			http.Error(w, "json", 400)
			return
		}
		if rate.Name == "" {
			writeErr(w, domain.Validation("name", "rate name is required"))
			return
		}
		if rate.MaxOrderCents != nil && *rate.MaxOrderCents < rate.MinOrderCents {
			writeErr(w, domain.Validation("max_order_cents", "window is inverted"))
			return
		}
		if rate.ID == uuid.Nil {
			rate.ID = uuid.New()
		}
		if err := s.rateRepo.Save(r.Context(), &rate); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, 201, rate)
	default:
		http.Error(w, "method", 405)
	}
}

func (s *Server) adminShippingRateByID(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	id, _, ok := parseUUIDSuffix(r.URL.Path, "/api/admin/shipping-rates/")
	if !ok {
		http.Error(w, "bad id", 400)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var rate domain.ShippingRate
		if err := json.NewDecoder(io.LimitReader(r.Body, 8192)).Decode(&rate); err != nil {
			http.Error(w, "json", 400)
			return
		}
		rate.ID = id
		if rate.MaxOrderCents != nil && *rate.MaxOrderCents < rate.MinOrderCents {
			writeErr(w, domain.Validation("max_order_cents", "window is inverted"))
			return
		}
		if err := s.rateRepo.Save(r.Context(), &rate); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, 200, rate)
	case http.MethodDelete:
		if err := s.rateRepo.Delete(r.Context(), id); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, 200, map[string]string{"status": "deleted"})
	default:
		http.Error(w, "method", 405)
	}
}

func (s *Server) adminOrders(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method", 405)
		return
	}
	q := r.URL.Query()
	var f domain.OrderFilter
	if st := q.Get("status"); st != "" {
		os := domain.OrderStatus(st)
		if !domain.ValidStatus(os) {
			writeErr(w, domain.Validation("status", "unknown order status"))
			return
		}
		f.Status = &os
	}
	if ps := q.Get("payment_status"); ps != "" {
		p := domain.PaymentStatus(ps)
		f.PaymentStatus = &p
	}
	if p := q.Get("page"); p != "" {
		if n, err := atoiPositive(p); err == nil {
			f.Page = n
		}
	}
	list, total, err := s.orderRepo.List(r.Context(), f)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"orders": list, "total": total})
}

func (s *Server) adminOrderByID(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	id, action, ok := parseUUIDSuffix(r.URL.Path, "/api/admin/orders/")
	if !ok {
		http.Error(w, "bad id", 400)
		return
	}

	switch {
	case r.Method == http.MethodGet && action == "":
		o, err := s.orderRepo.FindByID(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		hist, err := s.orderRepo.History(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, 200, map[string]any{"order": o, "history": hist})

	case r.Method == http.MethodPatch && action == "":
		var req struct {
			Status          *string `json:"status"`
			TrackingNumber  *string `json:"tracking_number"`
			TrackingURL     *string `json:"tracking_url"`
			ShippingCarrier *string `json:"carrier"`
			AdminNotes      *string `json:"admin_notes"`
			Note            string  `json:"note"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, 8192)).Decode(&req); err != nil {
			http.Error(w, "json", 400)
			return
		}
		upd := usecase.OrderUpdate{
			TrackingNumber:  req.TrackingNumber,
			TrackingURL:     req.TrackingURL,
			ShippingCarrier: req.ShippingCarrier,
			AdminNotes:      req.AdminNotes,
			Note:            req.Note,
		}
		if req.Status != nil {
			st := domain.OrderStatus(*req.Status)
			upd.Status = &st
		}
		o, err := s.orders.Update(r.Context(), id, upd, "admin")
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, 200, o)

	case r.Method == http.MethodPost && action == "refund":
		var req struct {
			AmountCents int64  `json:"amount_cents"`
			Reason      string `json:"reason"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, 2048)).Decode(&req); err != nil {
			http.Error(w, "json", 400)
			return
		}
		o, err := s.orders.Refund(r.Context(), id, req.AmountCents, req.Reason, "admin")
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, 200, o)

	case r.Method == http.MethodPost && action == "label":
		o, err := s.orders.BuyLabel(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, 200, o)

	case r.Method == http.MethodGet && action == "tracking":
		st, err := s.orders.CarrierStatus(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, 200, st)

	default:
		http.Error(w, "method", 405)
	}
}

// adminSales summarizes paid orders in a date range; format=csv streams the
// raw rows instead.
func (s *Server) adminSales(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method", 405)
		return
	}
	q := r.URL.Query()
	toDay := time.Now()
	from := toDay.AddDate(0, -1, 0)
	if v := q.Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeErr(w, domain.Validation("from", "expected YYYY-MM-DD"))
			return
		}
		from = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeErr(w, domain.Validation("to", "expected YYYY-MM-DD"))
			return
		}
		toDay = t
	}

	// the repo window is half-open, so the requested day extends to the
	// next midnight exactly once, here
	orders, err := s.orderRepo.ListInRange(r.Context(), from, toDay.AddDate(0, 0, 1))
	if err != nil {
		writeErr(w, err)
		return
	}

	if q.Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="sales.csv"`)
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"order_number", "date", "email", "status", "payment_status",
			"subtotal_cents", "discount_cents", "shipping_cents", "tax_cents", "total_cents", "refunded_cents"})
		for i := range orders {
			o := &orders[i]
			_ = cw.Write([]string{
				o.OrderNumber,
				o.CreatedAt.Format("2006-01-02"),
				o.Email,
				string(o.Status),
				string(o.PaymentStatus),
				strconv.FormatInt(o.SubtotalCents, 10),
				strconv.FormatInt(o.DiscountCents, 10),
				strconv.FormatInt(o.ShippingCents, 10),
				strconv.FormatInt(o.TaxCents, 10),
				strconv.FormatInt(o.TotalCents, 10),
				strconv.FormatInt(o.RefundedCents, 10),
			})
		}
		cw.Flush()
		return
	}

	var gross, refunded, discount int64
	var paid int
	byStatus := map[string]int{}
	for i := range orders {
		o := &orders[i]
		byStatus[string(o.Status)]++
		if o.PaymentStatus == domain.PaymentPaid ||
			o.PaymentStatus == domain.PaymentPartiallyRefunded ||
			o.PaymentStatus == domain.PaymentRefunded {
			paid++
			gross += o.TotalCents
			refunded += o.RefundedCents
			discount += o.DiscountCents
		}
	}
	writeJSON(w, 200, map[string]any{
		"from":           from.Format("2006-01-02"),
		"to":             toDay.Format("2006-01-02"),
		"orders":         len(orders),
		"paid_orders":    paid,
		"gross_cents":    gross,
		"refunded_cents": refunded,
		"net_cents":      gross - refunded,
		"discount_cents": discount,
		"by_status":      byStatus,
	})
}
