package httpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmoreyra/taller3d/internal/domain"
)

func adminTestServer() *Server {
	return &Server{
		adminSecret:  []byte("test-admin-secret"),
		adminAllowed: map[string]struct{}{"owner@example.com": {}},
		sessionKey:   []byte("test-session-key"),
	}
}

func TestAdminTokenRoundTrip(t *testing.T) {
	s := adminTestServer()
	token := s.issueAdminToken("admin")

	claims, err := s.verifyAdminToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Sub)
	assert.Greater(t, claims.Exp, time.Now().Unix())
}

func TestAdminTokenRejectsTampering(t *testing.T) {
	s := adminTestServer()
	token := s.issueAdminToken("admin")
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	// re-signed payload claiming a different subject
	forged, _ := json.Marshal(adminClaims{Sub: "intruder", Exp: time.Now().Add(time.Hour).Unix()})
	parts[1] = base64.RawURLEncoding.EncodeToString(forged)
	_, err := s.verifyAdminToken(strings.Join(parts, "."))
	assert.Error(t, err)

	// token signed by someone else's secret
	other := adminTestServer()
	other.adminSecret = []byte("different-secret")
	_, err = s.verifyAdminToken(other.issueAdminToken("admin"))
	assert.Error(t, err)

	_, err = s.verifyAdminToken("not.a.token")
	assert.Error(t, err)
}

func TestRequireAdmin(t *testing.T) {
	s := adminTestServer()

	// bearer token
	req := httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
	req.Header.Set("Authorization", "Bearer "+s.issueAdminToken("admin"))
	rec := httptest.NewRecorder()
	assert.True(t, s.requireAdmin(rec, req))

	// cookie
	req = httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
	req.AddCookie(&http.Cookie{Name: adminCookie, Value: s.issueAdminToken("admin")})
	rec = httptest.NewRecorder()
	assert.True(t, s.requireAdmin(rec, req))

	// allow-listed Google session
	req = httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
	req.AddCookie(&http.Cookie{Name: userCookie, Value: s.signSession(sessionUser{
		Email: "owner@example.com", Exp: time.Now().Add(time.Hour).Unix(),
	})})
	rec = httptest.NewRecorder()
	assert.True(t, s.requireAdmin(rec, req))

	// ordinary customer session is not enough
	req = httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
	req.AddCookie(&http.Cookie{Name: userCookie, Value: s.signSession(sessionUser{
		Email: "shopper@example.com", Exp: time.Now().Add(time.Hour).Unix(),
	})})
	rec = httptest.NewRecorder()
	assert.False(t, s.requireAdmin(rec, req))
	assert.Equal(t, 401, rec.Code)

	// nothing at all
	req = httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
	rec = httptest.NewRecorder()
	assert.False(t, s.requireAdmin(rec, req))
	assert.Equal(t, 401, rec.Code)
}

type stubOrderRepo struct {
	domain.OrderRepo
	orders []domain.Order
}

func (r *stubOrderRepo) ListInRange(ctx context.Context, from, to time.Time) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range r.orders {
		if !o.CreatedAt.Before(from) && o.CreatedAt.Before(to) {
			out = append(out, o)
		}
	}
	return out, nil
}

func paidAt(created time.Time, totalCents int64) domain.Order {
	return domain.Order{
		ID:            uuid.New(),
		OrderNumber:   "3T-SALES-" + uuid.NewString()[:4],
		Status:        domain.OrderStatusConfirmed,
		PaymentStatus: domain.PaymentPaid,
		TotalCents:    totalCents,
		CreatedAt:     created,
	}
}

// A report through Aug 30 covers that whole day and nothing created on
// Aug 31: the requested end day is extended to the next midnight exactly
// once, by the handler.
func TestAdminSalesRangeBoundary(t *testing.T) {
	loc := time.UTC
	s := adminTestServer()
	s.orderRepo = &stubOrderRepo{orders: []domain.Order{
		paidAt(time.Date(2026, 7, 31, 23, 0, 0, 0, loc), 111),  // before the window
		paidAt(time.Date(2026, 8, 1, 0, 0, 0, 0, loc), 1000),   // first instant of from-day
		paidAt(time.Date(2026, 8, 30, 23, 59, 59, 0, loc), 2000), // last second of to-day
		paidAt(time.Date(2026, 8, 31, 0, 0, 0, 0, loc), 4000),  // day after the window
		paidAt(time.Date(2026, 8, 31, 12, 0, 0, 0, loc), 8000), // day after the window
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/sales?from=2026-08-01&to=2026-08-30", nil)
	req.Header.Set("Authorization", "Bearer "+s.issueAdminToken("admin"))
	rec := httptest.NewRecorder()
	s.adminSales(rec, req)
	require.Equal(t, 200, rec.Code)

	var body struct {
		To         string `json:"to"`
		Orders     int    `json:"orders"`
		GrossCents int64  `json:"gross_cents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2026-08-30", body.To)
	assert.Equal(t, 2, body.Orders)
	assert.Equal(t, int64(3000), body.GrossCents)
}

func TestUserSessionExpiry(t *testing.T) {
	s := adminTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: userCookie, Value: s.signSession(sessionUser{
		Email: "shopper@example.com", Exp: time.Now().Add(-time.Minute).Unix(),
	})})
	assert.Nil(t, s.readUserSession(req))
}
