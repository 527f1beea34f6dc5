package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nmoreyra/taller3d/internal/domain"
)

const apiBase = "https://api.stripe.com/v1"

type Gateway struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

func NewGateway(secretKey, publicBaseURL string) *Gateway {
	return &Gateway{
		secretKey:  secretKey,
		baseURL:    strings.TrimRight(publicBaseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type sessionResp struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type couponResp struct {
	ID string `json:"id"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// CreateCheckoutSession opens a hosted checkout page for the order. Each
// order item becomes a line item; shipping and tax are synthetic line items
// so the gateway total always matches the persisted order total. A discount
// becomes a one-time single-use coupon attached to the session, keeping the
// per-item prices visible to the customer.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, o *domain.Order) (*domain.CheckoutSession, error) {
	if g.secretKey == "" {
		return nil, errors.New("stripe secret key missing (STRIPE_SECRET_KEY)")
	}
	if o == nil {
		return nil, errors.New("nil order")
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("customer_email", o.Email)
	form.Set("client_reference_id", o.OrderNumber)
	form.Set("metadata[order_id]", o.ID.String())
	form.Set("success_url", g.baseURL+"/checkout/success?session_id={CHECKOUT_SESSION_ID}")
	form.Set("cancel_url", g.baseURL+"/checkout/cancelled")

	i := 0
	addLine := func(name, image string, unitCents int64, qty int) {
		p := fmt.Sprintf("line_items[%d]", i)
		form.Set(p+"[price_data][currency]", "usd")
		form.Set(p+"[price_data][unit_amount]", strconv.FormatInt(unitCents, 10))
		form.Set(p+"[price_data][product_data][name]", name)
		if image != "" && strings.HasPrefix(image, "http") {
			form.Set(p+"[price_data][product_data][images][0]", image)
		}
		form.Set(p+"[quantity]", strconv.Itoa(qty))
		i++
	}
	for _, it := range o.Items {
		addLine(it.ProductName, it.ProductImage, it.UnitPriceCents, it.Quantity)
	}
	if o.ShippingCents > 0 {
		label := "Shipping"
		if o.ShippingRateName != "" {
			label = "Shipping (" + o.ShippingRateName + ")"
		}
		addLine(label, "", o.ShippingCents, 1)
	}
	if o.TaxCents > 0 {
		addLine("Sales Tax", "", o.TaxCents, 1)
	}

	if o.DiscountCents > 0 {
		couponID, err := g.createOneTimeCoupon(ctx, o)
		if err != nil {
			return nil, err
		}
		form.Set("discounts[0][coupon]", couponID)
	}

	var sess sessionResp
	if err := g.post(ctx, "/checkout/sessions", form, &sess); err != nil {
		return nil, err
	}
	if sess.ID == "" || sess.URL == "" {
		return nil, errors.New("incomplete checkout session response")
	}
	return &domain.CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (g *Gateway) createOneTimeCoupon(ctx context.Context, o *domain.Order) (string, error) {
	form := url.Values{}
	form.Set("amount_off", strconv.FormatInt(o.DiscountCents, 10))
	form.Set("currency", "usd")
	form.Set("duration", "once")
	form.Set("max_redemptions", "1")
	name := "Discount"
	if o.CouponCode != "" {
		name = "Discount (" + o.CouponCode + ")"
	}
	form.Set("name", name)
	var c couponResp
	if err := g.post(ctx, "/coupons", form, &c); err != nil {
		return "", err
	}
	if c.ID == "" {
		return "", errors.New("incomplete coupon response")
	}
	return c.ID, nil
}

// Refund issues a refund against the captured payment. Never retried
// automatically: a retry on a timeout could refund twice.
func (g *Gateway) Refund(ctx context.Context, paymentIntentID string, amountCents int64, reason string) error {
	if g.secretKey == "" {
		return errors.New("stripe secret key missing (STRIPE_SECRET_KEY)")
	}
	if paymentIntentID == "" || amountCents <= 0 {
		return errors.New("payment intent and positive amount are required")
	}
	form := url.Values{}
	form.Set("payment_intent", paymentIntentID)
	form.Set("amount", strconv.FormatInt(amountCents, 10))
	form.Set("reason", "requested_by_customer")
	if reason != "" {
		form.Set("metadata[note]", reason)
	}
	return g.post(ctx, "/refunds", form, &struct{}{})
}

func (g *Gateway) post(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiBase+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("stripe request failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 65536))
		var apiErr apiError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
			if res.StatusCode == 401 || res.StatusCode == 403 {
				return fmt.Errorf("stripe credentials rejected (status %d): %s", res.StatusCode, apiErr.Error.Message)
			}
			return fmt.Errorf("stripe error (status %d): %s", res.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("stripe %s status %d: %s", path, res.StatusCode, string(body))
	}
	return json.NewDecoder(res.Body).Decode(out)
}

// WebhookEvent is the envelope of a signed gateway notification.
type WebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID            string `json:"id"`
			PaymentIntent string `json:"payment_intent"`
			PaymentStatus string `json:"payment_status"`
		} `json:"object"`
	} `json:"data"`
}

// VerifyWebhook checks the Stripe-Signature header (t=...,v1=...) against the
// shared webhook secret and decodes the event. Events older than the
// tolerance window are rejected to stop replays.
func VerifyWebhook(payload []byte, sigHeader, secret string, tolerance time.Duration) (*WebhookEvent, error) {
	if secret == "" {
		return nil, errors.New("webhook secret missing (STRIPE_WEBHOOK_SECRET)")
	}
	var ts string
	var sigs []string
	for _, part := range strings.Split(sigHeader, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts = kv[1]
		case "v1":
			sigs = append(sigs, kv[1])
		}
	}
	if ts == "" || len(sigs) == 0 {
		return nil, errors.New("malformed signature header")
	}
	tsInt, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, errors.New("malformed signature timestamp")
	}
	if tolerance > 0 {
		age := time.Since(time.Unix(tsInt, 0))
		if age > tolerance || age < -tolerance {
			return nil, errors.New("signature timestamp outside tolerance")
		}
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	ok := false
	for _, s := range sigs {
		if hmac.Equal([]byte(expected), []byte(s)) {
			ok = true
			break
		}
	}
	if !ok {
		return nil, errors.New("signature mismatch")
	}
	var evt WebhookEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &evt, nil
}
