package httpserver

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nmoreyra/taller3d/internal/domain"
)

const (
	userCookie  = "t3d_session"
	stateCookie = "t3d_oauth_state"
	sessionTTL  = 30 * 24 * time.Hour
)

type sessionUser struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	Exp     int64  `json:"exp"`
}

func (s *Server) signSession(u sessionUser) string {
	raw, _ := json.Marshal(u)
	body := base64.RawURLEncoding.EncodeToString(raw)
	mac := hmac.New(sha256.New, s.sessionKey)
	mac.Write([]byte(body))
	return body + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (s *Server) readUserSession(r *http.Request) *sessionUser {
	ck, err := r.Cookie(userCookie)
	if err != nil || ck.Value == "" {
		return nil
	}
	parts := strings.SplitN(ck.Value, ".", 2)
	if len(parts) != 2 {
		return nil
	}
	mac := hmac.New(sha256.New, s.sessionKey)
	mac.Write([]byte(parts[0]))
	want := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(want), []byte(parts[1])) {
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil
	}
	var u sessionUser
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil
	}
	if u.Exp < time.Now().Unix() {
		return nil
	}
	return &u
}

func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if s.oauthCfg == nil || s.oauthCfg.ClientID == "" {
		http.Error(w, "login not configured", 503)
		return
	}
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	state := hex.EncodeToString(buf)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.cfg.IsProduction(),
	})
	http.Redirect(w, r, s.oauthCfg.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	ck, err := r.Cookie(stateCookie)
	if err != nil || ck.Value == "" || ck.Value != r.URL.Query().Get("state") {
		http.Error(w, "state mismatch", 400)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "code missing", 400)
		return
	}
	tok, err := s.oauthCfg.Exchange(r.Context(), code)
	if err != nil {
		log.Error().Err(err).Msg("oauth exchange")
		http.Error(w, "login failed", 502)
		return
	}

	info, err := fetchGoogleProfile(r, tok.AccessToken)
	if err != nil {
		log.Error().Err(err).Msg("oauth userinfo")
		http.Error(w, "login failed", 502)
		return
	}

	cust, err := s.customers.FindByEmail(r.Context(), info.Email)
	if errors.Is(err, domain.ErrNotFound) {
		cust = &domain.Customer{ID: uuid.New(), Email: strings.ToLower(info.Email)}
	} else if err != nil {
		writeErr(w, err)
		return
	}
	cust.Name = info.Name
	cust.Picture = info.Picture
	if err := s.customers.Save(r.Context(), cust); err != nil {
		writeErr(w, err)
		return
	}

	u := sessionUser{
		Email:   cust.Email,
		Name:    cust.Name,
		Picture: cust.Picture,
		Exp:     time.Now().Add(sessionTTL).Unix(),
	}
	http.SetCookie(w, &http.Cookie{
		Name:     userCookie,
		Value:    s.signSession(u),
		Path:     "/",
		MaxAge:   int(sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.cfg.IsProduction(),
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

type googleProfile struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func fetchGoogleProfile(r *http.Request, accessToken string) (*googleProfile, error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet,
		"https://www.googleapis.com/oauth2/v2/userinfo", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	client := &http.Client{Timeout: 10 * time.Second}
	res, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != 200 {
		return nil, errors.New("userinfo status " + res.Status)
	}
	var p googleProfile
	if err := json.NewDecoder(io.LimitReader(res.Body, 8192)).Decode(&p); err != nil {
		return nil, err
	}
	if p.Email == "" {
		return nil, errors.New("userinfo has no email")
	}
	return &p, nil
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: userCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	writeJSON(w, 200, map[string]string{"status": "logged_out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u := s.readUserSession(r)
	if u == nil {
		writeJSON(w, 401, map[string]string{"error": "not logged in"})
		return
	}
	writeJSON(w, 200, u)
}

// requireUser resolves the session cookie to a stored customer.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) *domain.Customer {
	u := s.readUserSession(r)
	if u == nil {
		writeJSON(w, 401, map[string]string{"error": "not logged in"})
		return nil
	}
	cust, err := s.customers.FindByEmail(r.Context(), u.Email)
	if err != nil {
		writeJSON(w, 401, map[string]string{"error": "not logged in"})
		return nil
	}
	return cust
}

func (s *Server) handleAccountOrders(w http.ResponseWriter, r *http.Request) {
	cust := s.requireUser(w, r)
	if cust == nil {
		return
	}
	orders, err := s.orderRepo.ListByEmail(r.Context(), cust.Email)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"orders": orders})
}

func (s *Server) handleAccountAddresses(w http.ResponseWriter, r *http.Request) {
	cust := s.requireUser(w, r)
	if cust == nil {
		return
	}
	switch r.Method {
	case http.MethodGet:
		list, err := s.addresses.ListByCustomer(r.Context(), cust.ID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, 200, map[string]any{"addresses": list})
	case http.MethodPost:
		var a domain.Address
		if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&a); err != nil {
			http.Error(w, "json", 400)
			return
		}
		if a.Line1 == "" || a.City == "" || a.PostalCode == "" {
			writeErr(w, domain.Validation("address", "line1, city and postal_code are required"))
			return
		}
		a.ID = uuid.New()
		a.CustomerID = cust.ID
		if err := s.addresses.Save(r.Context(), &a); err != nil {
			writeErr(w, err)
			return
		}
		if a.IsDefault {
			if err := s.addresses.SetDefault(r.Context(), cust.ID, a.ID); err != nil {
				writeErr(w, err)
				return
			}
		}
		writeJSON(w, 201, a)
	default:
		http.Error(w, "method", 405)
	}
}

func (s *Server) handleAccountAddressByID(w http.ResponseWriter, r *http.Request) {
	cust := s.requireUser(w, r)
	if cust == nil {
		return
	}
	id, action, ok := parseUUIDSuffix(r.URL.Path, "/api/account/addresses/")
	if !ok {
		http.Error(w, "bad id", 400)
		return
	}
	existing, err := s.addresses.FindByID(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if existing.CustomerID != cust.ID {
		writeErr(w, domain.ErrNotFound)
		return
	}

	switch {
	case r.Method == http.MethodPost && action == "default":
		if err := s.addresses.SetDefault(r.Context(), cust.ID, id); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, 200, map[string]string{"status": "ok"})
	case r.Method == http.MethodPut && action == "":
		var a domain.Address
		if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&a); err != nil {
			http.Error(w, "json", 400)
			return
		}
		a.ID = id
		a.CustomerID = cust.ID
		a.IsDefault = existing.IsDefault
		if err := s.addresses.Save(r.Context(), &a); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, 200, a)
	case r.Method == http.MethodDelete && action == "":
		if err := s.addresses.Delete(r.Context(), id); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, 200, map[string]string{"status": "deleted"})
	default:
		http.Error(w, "method", 405)
	}
}
