package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nmoreyra/taller3d/internal/domain"
)

// In-memory fakes for the repo and gateway ports. They only implement the
// behavior the use cases under test exercise.

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[uuid.UUID]*domain.Product
	decrs    []uuid.UUID
}

func newFakeProducts(ps ...*domain.Product) *fakeProductRepo {
	r := &fakeProductRepo{products: map[uuid.UUID]*domain.Product{}}
	for _, p := range ps {
		r.products[p.ID] = p
	}
	return r
}

func (r *fakeProductRepo) Save(ctx context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = p
	return nil
}

func (r *fakeProductRepo) FindBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.Slug == slug {
			return p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeProductRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.products[id]; ok {
		return p, nil
	}
	return nil, domain.ErrNotFound
}

func (r *fakeProductRepo) FindActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Product
	for _, id := range ids {
		if p, ok := r.products[id]; ok && p.Active {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakeProductRepo) List(ctx context.Context, f domain.ProductFilter) ([]domain.Product, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Product
	for _, p := range r.products {
		if !f.IncludeInactive && !p.Active {
			continue
		}
		out = append(out, *p)
	}
	return out, int64(len(out)), nil
}

func (r *fakeProductRepo) AddImages(ctx context.Context, productID uuid.UUID, imgs []domain.ProductImage) error {
	return nil
}

func (r *fakeProductRepo) ClearImages(ctx context.Context, productID uuid.UUID) error { return nil }

func (r *fakeProductRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Active = false
	return nil
}

func (r *fakeProductRepo) DecrementStock(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	r.decrs = append(r.decrs, id)
	if !p.TrackInventory {
		return true, nil
	}
	if p.StockQuantity < qty {
		return false, nil
	}
	p.StockQuantity -= qty
	return true, nil
}

type fakeOrderRepo struct {
	mu      sync.Mutex
	orders  map[uuid.UUID]*domain.Order
	history []domain.OrderStatusHistory
	// createErrs is consumed one per Create call to simulate collisions
	createErrs []error
	creates    int
}

func newFakeOrders(os ...*domain.Order) *fakeOrderRepo {
	r := &fakeOrderRepo{orders: map[uuid.UUID]*domain.Order{}}
	for _, o := range os {
		r.orders[o.ID] = o
	}
	return r
}

func (r *fakeOrderRepo) Create(ctx context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	if len(r.createErrs) > 0 {
		err := r.createErrs[0]
		r.createErrs = r.createErrs[1:]
		if err != nil {
			return err
		}
	}
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *fakeOrderRepo) Save(ctx context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *fakeOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *fakeOrderRepo) FindByNumber(ctx context.Context, number string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.OrderNumber == number {
			cp := *o
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeOrderRepo) FindBySession(ctx context.Context, sessionID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.CheckoutSessionID == sessionID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeOrderRepo) List(ctx context.Context, f domain.OrderFilter) ([]domain.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, o := range r.orders {
		out = append(out, *o)
	}
	return out, int64(len(out)), nil
}

func (r *fakeOrderRepo) ListByEmail(ctx context.Context, email string) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, o := range r.orders {
		if strings.EqualFold(o.Email, email) {
			out = append(out, *o)
		}
	}
	return out, nil
}

// ListInRange mirrors the postgres repo's half-open [from, to) window.
func (r *fakeOrderRepo) ListInRange(ctx context.Context, from, to time.Time) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, o := range r.orders {
		if !o.CreatedAt.Before(from) && o.CreatedAt.Before(to) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) SetPaymentSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.CheckoutSessionID = sessionID
	return nil
}

func (r *fakeOrderRepo) AppendHistory(ctx context.Context, h *domain.OrderStatusHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, *h)
	return nil
}

func (r *fakeOrderRepo) History(ctx context.Context, orderID uuid.UUID) ([]domain.OrderStatusHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.OrderStatusHistory
	for _, h := range r.history {
		if h.OrderID == orderID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) get(id uuid.UUID) *domain.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[id]
}

type fakeCouponRepo struct {
	mu      sync.Mutex
	coupons map[string]*domain.Coupon
}

func newFakeCoupons(cs ...*domain.Coupon) *fakeCouponRepo {
	r := &fakeCouponRepo{coupons: map[string]*domain.Coupon{}}
	for _, c := range cs {
		r.coupons[c.Code] = c
	}
	return r
}

func (r *fakeCouponRepo) FindByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.coupons[code]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *fakeCouponRepo) List(ctx context.Context) ([]domain.Coupon, error) { return nil, nil }

func (r *fakeCouponRepo) Save(ctx context.Context, c *domain.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coupons[c.Code] = c
	return nil
}

func (r *fakeCouponRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (r *fakeCouponRepo) ConsumeUsage(ctx context.Context, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coupons[code]
	if !ok {
		return false, domain.ErrNotFound
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return false, nil
	}
	c.UsageCount++
	return true, nil
}

type fakeRateRepo struct {
	rates []domain.ShippingRate
}

func (r *fakeRateRepo) ListEligible(ctx context.Context, subtotalCents int64) ([]domain.ShippingRate, error) {
	var out []domain.ShippingRate
	for _, rate := range r.rates {
		if rate.EligibleFor(subtotalCents) {
			out = append(out, rate)
		}
	}
	return out, nil
}

func (r *fakeRateRepo) List(ctx context.Context) ([]domain.ShippingRate, error) {
	return r.rates, nil
}

func (r *fakeRateRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.ShippingRate, error) {
	for i := range r.rates {
		if r.rates[i].ID == id {
			return &r.rates[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeRateRepo) Save(ctx context.Context, rate *domain.ShippingRate) error { return nil }
func (r *fakeRateRepo) Delete(ctx context.Context, id uuid.UUID) error            { return nil }

type fakeGateway struct {
	mu         sync.Mutex
	sessions   int
	refunds    []int64
	sessionErr error
	refundErr  error
}

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, o *domain.Order) (*domain.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sessionErr != nil {
		return nil, g.sessionErr
	}
	g.sessions++
	return &domain.CheckoutSession{ID: "cs_test_" + o.OrderNumber, URL: "https://pay.example/" + o.OrderNumber}, nil
}

func (g *fakeGateway) Refund(ctx context.Context, paymentIntentID string, amountCents int64, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return g.refundErr
	}
	g.refunds = append(g.refunds, amountCents)
	return nil
}

// fakeMailer records sends on a channel so tests can wait for the async
// notification goroutines.
type fakeMailer struct {
	sent chan string
}

func newFakeMailer() *fakeMailer { return &fakeMailer{sent: make(chan string, 8)} }

func (m *fakeMailer) OrderConfirmation(o *domain.Order) error {
	m.sent <- "confirmation:" + o.OrderNumber
	return nil
}

func (m *fakeMailer) ShippingNotification(o *domain.Order) error {
	m.sent <- "shipping:" + o.OrderNumber
	return nil
}

func (m *fakeMailer) RefundNotification(o *domain.Order, amountCents int64, reason string) error {
	m.sent <- "refund:" + o.OrderNumber
	return nil
}

func (m *fakeMailer) waitFor(kind string, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		select {
		case s := <-m.sent:
			if strings.HasPrefix(s, kind+":") {
				return true
			}
		case <-deadline:
			return false
		}
	}
}

type fakeCarrier struct {
	label *domain.ShipmentLabel
	err   error
}

func (c *fakeCarrier) CreateLabel(ctx context.Context, o *domain.Order) (*domain.ShipmentLabel, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.label, nil
}

func (c *fakeCarrier) Track(ctx context.Context, trackingNumber string) (*domain.TrackingStatus, error) {
	return &domain.TrackingStatus{TrackingNumber: trackingNumber, Status: "in_transit"}, nil
}
