package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nmoreyra/taller3d/internal/domain"
)

// tokenSafety is subtracted from the token lifetime so a token never expires
// mid-request.
const tokenSafety = 60 * time.Second

// Client talks to the carrier aggregator API. The OAuth access token is
// cached per process behind a mutex; in a multi-instance deployment each
// instance fetches its own token, which is wasteful but harmless.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func New(baseURL, clientID, clientSecret string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) Configured() bool {
	return c.baseURL != "" && c.clientID != "" && c.clientSecret != ""
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExp) {
		return c.token, nil
	}
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("carrier token request failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 8192))
		return "", fmt.Errorf("carrier token status %d: %s", res.StatusCode, string(body))
	}
	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(res.Body).Decode(&tok); err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", errors.New("carrier token response empty")
	}
	c.token = tok.AccessToken
	c.tokenExp = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenSafety)
	return c.token, nil
}

type labelReq struct {
	Reference string       `json:"reference"`
	To        labelAddress `json:"to"`
}

type labelAddress struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

type labelResp struct {
	TrackingNumber string `json:"tracking_number"`
	TrackingURL    string `json:"tracking_url"`
	Carrier        string `json:"carrier"`
	LabelURL       string `json:"label_url"`
}

// CreateLabel buys a shipping label for the order's address snapshot. Never
// retried automatically; a duplicate label is a real cost.
func (c *Client) CreateLabel(ctx context.Context, o *domain.Order) (*domain.ShipmentLabel, error) {
	if !c.Configured() {
		return nil, errors.New("carrier credentials missing")
	}
	addr := o.ShippingAddress
	body := labelReq{
		Reference: o.OrderNumber,
		To: labelAddress{
			Name:       addr.FullName,
			Line1:      addr.Line1,
			Line2:      addr.Line2,
			City:       addr.City,
			State:      addr.State,
			PostalCode: addr.PostalCode,
			Country:    addr.Country,
			Phone:      addr.Phone,
		},
	}
	var out labelResp
	if err := c.postJSON(ctx, "/v1/shipments", body, &out); err != nil {
		return nil, err
	}
	if out.TrackingNumber == "" {
		return nil, errors.New("carrier returned no tracking number")
	}
	return &domain.ShipmentLabel{
		TrackingNumber: out.TrackingNumber,
		TrackingURL:    out.TrackingURL,
		Carrier:        out.Carrier,
		LabelURL:       out.LabelURL,
	}, nil
}

func (c *Client) Track(ctx context.Context, trackingNumber string) (*domain.TrackingStatus, error) {
	if !c.Configured() {
		return nil, errors.New("carrier credentials missing")
	}
	if trackingNumber == "" {
		return nil, errors.New("tracking number required")
	}
	tok, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/tracking/"+url.PathEscape(trackingNumber), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("carrier tracking request failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 8192))
		return nil, fmt.Errorf("carrier tracking status %d: %s", res.StatusCode, string(body))
	}
	var out struct {
		TrackingNumber string    `json:"tracking_number"`
		Status         string    `json:"status"`
		Detail         string    `json:"detail"`
		UpdatedAt      time.Time `json:"updated_at"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &domain.TrackingStatus{
		TrackingNumber: out.TrackingNumber,
		Status:         out.Status,
		Detail:         out.Detail,
		UpdatedAt:      out.UpdatedAt,
	}, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	tok, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	buf, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")
	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("carrier request failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 8192))
		return fmt.Errorf("carrier %s status %d: %s", path, res.StatusCode, string(body))
	}
	return json.NewDecoder(res.Body).Decode(out)
}
