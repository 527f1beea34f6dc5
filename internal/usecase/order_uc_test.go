package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmoreyra/taller3d/internal/domain"
)

func paidOrder(status domain.OrderStatus) *domain.Order {
	return &domain.Order{
		ID:              uuid.New(),
		OrderNumber:     "3T-TEST-" + strings.ToUpper(uuid.NewString()[:4]),
		Email:           "jamie@example.com",
		Status:          status,
		PaymentStatus:   domain.PaymentPaid,
		TotalCents:      10000,
		PaymentIntentID: "pi_test_123",
	}
}

func statusPtr(s domain.OrderStatus) *domain.OrderStatus { return &s }

func TestOrderUpdateValidTransition(t *testing.T) {
	o := paidOrder(domain.OrderStatusConfirmed)
	orders := newFakeOrders(o)
	uc := &OrderUC{Orders: orders}

	got, err := uc.Update(context.Background(), o.ID, OrderUpdate{
		Status: statusPtr(domain.OrderStatusProcessing),
		Note:   "printer queue",
	}, "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, got.Status)

	hist, _ := orders.History(context.Background(), o.ID)
	require.Len(t, hist, 1)
	assert.Equal(t, domain.OrderStatusProcessing, hist[0].Status)
	assert.Equal(t, "admin", hist[0].ChangedBy)
	assert.Equal(t, "printer queue", hist[0].Note)
}

func TestOrderUpdateRejectsInvalidTransition(t *testing.T) {
	o := paidOrder(domain.OrderStatusPending)
	orders := newFakeOrders(o)
	uc := &OrderUC{Orders: orders}

	_, err := uc.Update(context.Background(), o.ID, OrderUpdate{
		Status: statusPtr(domain.OrderStatusShipped),
	}, "admin")
	var tErr *domain.InvalidTransitionError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, domain.OrderStatusPending, tErr.From)

	// terminal states stay terminal
	d := paidOrder(domain.OrderStatusDelivered)
	orders = newFakeOrders(d)
	uc = &OrderUC{Orders: orders}
	_, err = uc.Update(context.Background(), d.ID, OrderUpdate{
		Status: statusPtr(domain.OrderStatusShipped),
	}, "admin")
	require.ErrorAs(t, err, &tErr)
}

func TestOrderUpdateRejectsUnknownStatus(t *testing.T) {
	o := paidOrder(domain.OrderStatusConfirmed)
	uc := &OrderUC{Orders: newFakeOrders(o)}

	bad := domain.OrderStatus("en_route")
	_, err := uc.Update(context.Background(), o.ID, OrderUpdate{Status: &bad}, "admin")
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestOrderUpdateShippedSideEffects(t *testing.T) {
	o := paidOrder(domain.OrderStatusReadyToShip)
	orders := newFakeOrders(o)
	mailer := newFakeMailer()
	uc := &OrderUC{Orders: orders, Mailer: mailer}

	tn := "1Z999"
	got, err := uc.Update(context.Background(), o.ID, OrderUpdate{
		Status:         statusPtr(domain.OrderStatusShipped),
		TrackingNumber: &tn,
	}, "admin")
	require.NoError(t, err)
	assert.Equal(t, "1Z999", got.TrackingNumber)
	require.NotNil(t, got.ShippedAt)
	assert.WithinDuration(t, time.Now(), *got.ShippedAt, time.Minute)
	assert.True(t, mailer.waitFor("shipping", 2*time.Second))
}

func TestOrderUpdateSameStatusIsNotATransition(t *testing.T) {
	o := paidOrder(domain.OrderStatusConfirmed)
	orders := newFakeOrders(o)
	uc := &OrderUC{Orders: orders}

	note := "customer called"
	_, err := uc.Update(context.Background(), o.ID, OrderUpdate{
		Status:     statusPtr(domain.OrderStatusConfirmed),
		AdminNotes: &note,
	}, "admin")
	require.NoError(t, err)
	hist, _ := orders.History(context.Background(), o.ID)
	assert.Empty(t, hist)
	assert.Equal(t, note, orders.get(o.ID).AdminNotes)
}

func TestTrackRequiresMatchingEmail(t *testing.T) {
	o := paidOrder(domain.OrderStatusShipped)
	uc := &OrderUC{Orders: newFakeOrders(o)}
	ctx := context.Background()

	got, _, err := uc.Track(ctx, o.OrderNumber, "JAMIE@example.com")
	require.NoError(t, err)
	assert.Equal(t, o.OrderNumber, got.OrderNumber)

	// wrong email looks identical to an unknown number
	_, _, err = uc.Track(ctx, o.OrderNumber, "other@example.com")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, _, err = uc.Track(ctx, "3T-NOPE-XXXX", "jamie@example.com")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, _, err = uc.Track(ctx, "", "")
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestRefundPartialThenFull(t *testing.T) {
	o := paidOrder(domain.OrderStatusDelivered)
	orders := newFakeOrders(o)
	gw := &fakeGateway{}
	mailer := newFakeMailer()
	uc := &OrderUC{Orders: orders, Gateway: gw, Mailer: mailer}
	ctx := context.Background()

	got, err := uc.Refund(ctx, o.ID, 4000, "damaged part", "admin")
	require.NoError(t, err)
	assert.Equal(t, int64(4000), got.RefundedCents)
	assert.Equal(t, domain.PaymentPartiallyRefunded, got.PaymentStatus)
	assert.True(t, mailer.waitFor("refund", 2*time.Second))

	got, err = uc.Refund(ctx, o.ID, 6000, "remainder", "admin")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), got.RefundedCents)
	assert.Equal(t, domain.PaymentRefunded, got.PaymentStatus)
	assert.Equal(t, []int64{4000, 6000}, gw.refunds)
}

func TestRefundValidatesBeforeGateway(t *testing.T) {
	gw := &fakeGateway{}
	ctx := context.Background()

	o := paidOrder(domain.OrderStatusDelivered)
	uc := &OrderUC{Orders: newFakeOrders(o), Gateway: gw}

	_, err := uc.Refund(ctx, o.ID, 10001, "too much", "admin")
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)

	_, err = uc.Refund(ctx, o.ID, 0, "zero", "admin")
	require.ErrorAs(t, err, &vErr)

	unpaid := paidOrder(domain.OrderStatusPending)
	unpaid.PaymentStatus = domain.PaymentPending
	uc = &OrderUC{Orders: newFakeOrders(unpaid), Gateway: gw}
	_, err = uc.Refund(ctx, unpaid.ID, 1000, "not paid", "admin")
	var nErr *domain.NotEligibleError
	require.ErrorAs(t, err, &nErr)

	// none of the rejected attempts reached the gateway
	assert.Empty(t, gw.refunds)
}

func TestRefundGatewayErrorIsNotRetried(t *testing.T) {
	o := paidOrder(domain.OrderStatusDelivered)
	orders := newFakeOrders(o)
	gw := &fakeGateway{refundErr: errors.New("insufficient balance")}
	uc := &OrderUC{Orders: orders, Gateway: gw}

	_, err := uc.Refund(context.Background(), o.ID, 1000, "test", "admin")
	var xErr *domain.ExternalServiceError
	require.ErrorAs(t, err, &xErr)
	// nothing was recorded against the order
	assert.Equal(t, int64(0), orders.get(o.ID).RefundedCents)
	assert.Equal(t, domain.PaymentPaid, orders.get(o.ID).PaymentStatus)
}

func TestBuyLabelOnlyWhenReadyToShip(t *testing.T) {
	ctx := context.Background()
	label := &domain.ShipmentLabel{TrackingNumber: "TRK123", TrackingURL: "https://t.example/TRK123", Carrier: "UPS"}

	o := paidOrder(domain.OrderStatusReadyToShip)
	orders := newFakeOrders(o)
	uc := &OrderUC{Orders: orders, Carrier: &fakeCarrier{label: label}}

	got, err := uc.BuyLabel(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "TRK123", got.TrackingNumber)
	assert.Equal(t, "UPS", got.ShippingCarrier)

	early := paidOrder(domain.OrderStatusPrinting)
	uc = &OrderUC{Orders: newFakeOrders(early), Carrier: &fakeCarrier{label: label}}
	_, err = uc.BuyLabel(ctx, early.ID)
	var nErr *domain.NotEligibleError
	require.ErrorAs(t, err, &nErr)
}

func TestCarrierStatus(t *testing.T) {
	ctx := context.Background()

	o := paidOrder(domain.OrderStatusShipped)
	o.TrackingNumber = "TRK123"
	uc := &OrderUC{Orders: newFakeOrders(o), Carrier: &fakeCarrier{}}

	st, err := uc.CarrierStatus(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "TRK123", st.TrackingNumber)
	assert.Equal(t, "in_transit", st.Status)

	bare := paidOrder(domain.OrderStatusConfirmed)
	uc = &OrderUC{Orders: newFakeOrders(bare), Carrier: &fakeCarrier{}}
	_, err = uc.CarrierStatus(ctx, bare.ID)
	var nErr *domain.NotEligibleError
	require.ErrorAs(t, err, &nErr)
}
