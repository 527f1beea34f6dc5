package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/nmoreyra/taller3d/internal/adapters/payments/stripe"
	"github.com/nmoreyra/taller3d/internal/config"
	"github.com/nmoreyra/taller3d/internal/domain"
	"github.com/nmoreyra/taller3d/internal/usecase"
)

type Server struct {
	mux *http.ServeMux
	cfg *config.Config

	products *usecase.ProductUC
	coupons  *usecase.CouponUC
	shipping *usecase.ShippingUC
	checkout *usecase.CheckoutUC
	orders   *usecase.OrderUC
	payments *usecase.PaymentUC

	productRepo domain.ProductRepo
	orderRepo   domain.OrderRepo
	couponRepo  domain.CouponRepo
	rateRepo    domain.ShippingRateRepo
	customers   domain.CustomerRepo
	addresses   domain.AddressRepo

	oauthCfg *oauth2.Config

	adminAllowed map[string]struct{}
	adminSecret  []byte
	sessionKey   []byte
}

type Deps struct {
	Config   *config.Config
	Products *usecase.ProductUC
	Coupons  *usecase.CouponUC
	Shipping *usecase.ShippingUC
	Checkout *usecase.CheckoutUC
	Orders   *usecase.OrderUC
	Payments *usecase.PaymentUC

	ProductRepo domain.ProductRepo
	OrderRepo   domain.OrderRepo
	CouponRepo  domain.CouponRepo
	RateRepo    domain.ShippingRateRepo
	Customers   domain.CustomerRepo
	Addresses   domain.AddressRepo

	OAuthConfig *oauth2.Config
}

func New(d Deps) http.Handler {
	s := &Server{
		mux:         http.NewServeMux(),
		cfg:         d.Config,
		products:    d.Products,
		coupons:     d.Coupons,
		shipping:    d.Shipping,
		checkout:    d.Checkout,
		orders:      d.Orders,
		payments:    d.Payments,
		productRepo: d.ProductRepo,
		orderRepo:   d.OrderRepo,
		couponRepo:  d.CouponRepo,
		rateRepo:    d.RateRepo,
		customers:   d.Customers,
		addresses:   d.Addresses,
		oauthCfg:    d.OAuthConfig,
	}

	allowed := map[string]struct{}{}
	for _, e := range strings.Split(d.Config.AdminAllowedEmails, ",") {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			allowed[e] = struct{}{}
		}
	}
	s.adminAllowed = allowed
	s.adminSecret = []byte(d.Config.AdminSecret)
	s.sessionKey = []byte(d.Config.SessionKey)

	s.routes()
	return Chain(s.mux,
		PublicRateLimit(map[string]int{
			"/api/checkout":         10,
			"/api/coupons/validate": 15,
			"/api/orders/track":     20,
			"/webhooks/stripe":      30,
		}),
		RateLimit(120),
		SecurityHeaders,
		Gzip,
		RequestID,
		Recovery,
		Logging,
	)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/products", s.handleProducts)
	s.mux.HandleFunc("/api/products/", s.handleProductBySlug)
	s.mux.HandleFunc("/api/categories", s.handleCategories)

	s.mux.HandleFunc("/cart", s.handleCart)
	s.mux.HandleFunc("/cart/add", s.handleCartAdd)
	s.mux.HandleFunc("/cart/update", s.handleCartUpdate)
	s.mux.HandleFunc("/cart/remove", s.handleCartRemove)
	s.mux.HandleFunc("/cart/clear", s.handleCartClear)

	s.mux.HandleFunc("/api/coupons/validate", s.handleValidateCoupon)
	s.mux.HandleFunc("/api/shipping/rates", s.handleShippingRates)
	s.mux.HandleFunc("/api/checkout", s.handleCheckout)
	s.mux.HandleFunc("/checkout/success", s.handleCheckoutSuccess)
	s.mux.HandleFunc("/checkout/cancelled", s.handleCheckoutCancelled)
	s.mux.HandleFunc("/webhooks/stripe", s.handleStripeWebhook)
	s.mux.HandleFunc("/api/orders/track", s.handleTrackOrder)

	s.mux.HandleFunc("/auth/google/login", s.handleGoogleLogin)
	s.mux.HandleFunc("/auth/google/callback", s.handleGoogleCallback)
	s.mux.HandleFunc("/logout", s.handleLogout)
	s.mux.HandleFunc("/api/me", s.handleMe)
	s.mux.HandleFunc("/api/account/orders", s.handleAccountOrders)
	s.mux.HandleFunc("/api/account/addresses", s.handleAccountAddresses)
	s.mux.HandleFunc("/api/account/addresses/", s.handleAccountAddressByID)

	s.mux.HandleFunc("/admin/auth", s.handleAdminAuth)
	s.mux.HandleFunc("/api/admin/products", s.adminProducts)
	s.mux.HandleFunc("/api/admin/products/", s.adminProductBySlug)
	s.mux.HandleFunc("/api/admin/products/export.xlsx", s.adminExportProducts)
	s.mux.HandleFunc("/api/admin/products/import", s.adminImportProducts)
	s.mux.HandleFunc("/api/admin/categories", s.adminCategories)
	s.mux.HandleFunc("/api/admin/coupons", s.adminCoupons)
	s.mux.HandleFunc("/api/admin/coupons/", s.adminCouponByID)
	s.mux.HandleFunc("/api/admin/shipping-rates", s.adminShippingRates)
	s.mux.HandleFunc("/api/admin/shipping-rates/", s.adminShippingRateByID)
	s.mux.HandleFunc("/api/admin/orders", s.adminOrders)
	s.mux.HandleFunc("/api/admin/orders/", s.adminOrderByID)
	s.mux.HandleFunc("/api/admin/sales", s.adminSales)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps the domain error taxonomy to HTTP statuses. External
// failures keep their detail on the server side only.
func writeErr(w http.ResponseWriter, err error) {
	var (
		vErr  *domain.ValidationError
		nErr  *domain.NotEligibleError
		sErr  *domain.OutOfStockError
		tErr  *domain.InvalidTransitionError
		xErr  *domain.ExternalServiceError
	)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, 404, map[string]string{"error": "not found"})
	case errors.Is(err, domain.ErrProductsUnavailable):
		writeJSON(w, 409, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrNoShippingRate):
		writeJSON(w, 422, map[string]string{"error": err.Error()})
	case errors.As(err, &vErr):
		writeJSON(w, 400, map[string]string{"error": vErr.Error()})
	case errors.As(err, &nErr):
		writeJSON(w, 422, map[string]string{"error": nErr.Error()})
	case errors.As(err, &sErr):
		writeJSON(w, 409, map[string]string{"error": "out of stock: " + sErr.Error()})
	case errors.As(err, &tErr):
		writeJSON(w, 422, map[string]string{"error": tErr.Error()})
	case errors.As(err, &xErr):
		log.Error().Err(xErr.Err).Str("service", xErr.Service).Msg("external service failure")
		writeJSON(w, 502, map[string]string{"error": "a service we depend on is unavailable, please try again"})
	default:
		log.Error().Err(err).Msg("unhandled error")
		writeJSON(w, 500, map[string]string{"error": "internal error"})
	}
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method", 405)
		return
	}
	q := r.URL.Query()
	f := domain.ProductFilter{
		Category: q.Get("category"),
		Query:    q.Get("q"),
		Sort:     q.Get("sort"),
	}
	if q.Get("featured") == "1" {
		t := true
		f.Featured = &t
	}
	if p := q.Get("page"); p != "" {
		if n, err := atoiPositive(p); err == nil {
			f.Page = n
		}
	}
	if ps := q.Get("page_size"); ps != "" {
		if n, err := atoiPositive(ps); err == nil && n <= 100 {
			f.PageSize = n
		}
	}
	list, total, err := s.products.List(r.Context(), f)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"products": list, "total": total})
}

func (s *Server) handleProductBySlug(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method", 405)
		return
	}
	slug := strings.TrimPrefix(r.URL.Path, "/api/products/")
	p, err := s.products.GetBySlug(r.Context(), slug)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !p.Active {
		writeErr(w, domain.ErrNotFound)
		return
	}
	writeJSON(w, 200, p)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method", 405)
		return
	}
	list, err := s.products.ListCategories(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"categories": list})
}

func (s *Server) handleValidateCoupon(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method", 405)
		return
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, 2048))
	var req struct {
		Code          string `json:"code"`
		SubtotalCents int64  `json:"subtotal_cents"`
	}
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "json", 400)
		return
	}
	c, discount, err := s.coupons.Validate(r.Context(), req.Code, req.SubtotalCents)
	if err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, 200, map[string]any{"coupon": c, "discount_cents": discount})
}

func (s *Server) handleShippingRates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method", 405)
		return
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, 1024))
	var req struct {
		SubtotalCents int64 `json:"subtotal_cents"`
	}
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "json", 400)
		return
	}
	rates, err := s.shipping.ListEligible(r.Context(), req.SubtotalCents)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"rates": rates})
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method", 405)
		return
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, 16384))
	var in usecase.CheckoutInput
	if err := dec.Decode(&in); err != nil {
		http.Error(w, "json", 400)
		return
	}
	if u := s.readUserSession(r); u != nil {
		if cust, err := s.customers.FindByEmail(r.Context(), u.Email); err == nil {
			in.CustomerID = &cust.ID
			if in.AddressID != nil {
				addr, err := s.resolveSavedAddress(r.Context(), cust, *in.AddressID)
				if err != nil {
					writeErr(w, err)
					return
				}
				in.Address = addr
			}
		}
	} else if in.AddressID != nil {
		writeErr(w, domain.Validation("address_id", "requires a signed-in session"))
		return
	}
	res, err := s.checkout.Checkout(r.Context(), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	// the browser navigates to the hosted payment page itself
	s.writeCart(w, cartPayload{})
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, 200, map[string]any{
		"session_id":   res.SessionID,
		"url":          res.URL,
		"order_number": res.Order.OrderNumber,
	})
}

// resolveSavedAddress snapshots one of the customer's saved addresses into
// the order-embedded form. An address owned by someone else looks absent.
func (s *Server) resolveSavedAddress(ctx context.Context, cust *domain.Customer, id uuid.UUID) (domain.ShippingAddress, error) {
	a, err := s.addresses.FindByID(ctx, id)
	if err != nil {
		return domain.ShippingAddress{}, err
	}
	if a.CustomerID != cust.ID {
		return domain.ShippingAddress{}, domain.ErrNotFound
	}
	return a.Snapshot(cust.Email), nil
}

func (s *Server) handleCheckoutSuccess(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "session_id", 400)
		return
	}
	o, err := s.orderRepo.FindBySession(r.Context(), sessionID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{
		"order_number":   o.OrderNumber,
		"status":         o.Status,
		"payment_status": o.PaymentStatus,
		"total_cents":    o.TotalCents,
	})
}

func (s *Server) handleCheckoutCancelled(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "cancelled"})
}

func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method", 405)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 65536))
	if err != nil {
		w.WriteHeader(400)
		return
	}
	evt, err := stripe.VerifyWebhook(body, r.Header.Get("Stripe-Signature"), s.cfg.StripeWebhookSecret, 5*time.Minute)
	if err != nil {
		log.Warn().Err(err).Msg("webhook signature rejected")
		w.WriteHeader(400)
		return
	}
	// always ack known-session failures with 200 so the gateway stops
	// retrying; our own logs carry the detail
	switch evt.Type {
	case "checkout.session.completed":
		if err := s.payments.ConfirmCheckout(r.Context(), evt.Data.Object.ID, evt.Data.Object.PaymentIntent); err != nil {
			log.Error().Err(err).Str("session", evt.Data.Object.ID).Msg("confirm checkout")
		}
	case "checkout.session.expired":
		if err := s.payments.FailCheckout(r.Context(), evt.Data.Object.ID); err != nil {
			log.Error().Err(err).Str("session", evt.Data.Object.ID).Msg("fail checkout")
		}
	default:
		log.Debug().Str("type", evt.Type).Msg("webhook event ignored")
	}
	w.WriteHeader(200)
}

func (s *Server) handleTrackOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method", 405)
		return
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, 1024))
	var req struct {
		OrderNumber string `json:"order_number"`
		Email       string `json:"email"`
	}
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "json", 400)
		return
	}
	o, hist, err := s.orders.Track(r.Context(), req.OrderNumber, req.Email)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{
		"order_number":    o.OrderNumber,
		"status":          o.Status,
		"payment_status":  o.PaymentStatus,
		"tracking_number": o.TrackingNumber,
		"tracking_url":    o.TrackingURL,
		"carrier":         o.ShippingCarrier,
		"shipped_at":      o.ShippedAt,
		"delivered_at":    o.DeliveredAt,
		"items":           o.Items,
		"total_cents":     o.TotalCents,
		"history":         hist,
	})
}

func atoiPositive(s string) (int, error) {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, errors.New("not a number")
		}
		n = n*10 + int(c-'0')
		if n > 1<<20 {
			return 0, errors.New("too large")
		}
	}
	if n == 0 {
		return 0, errors.New("zero")
	}
	return n, nil
}

func parseUUIDSuffix(path, prefix string) (uuid.UUID, string, bool) {
	rest := strings.TrimPrefix(path, prefix)
	parts := strings.SplitN(rest, "/", 2)
	id, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, "", false
	}
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}
	return id, action, true
}
