package billing

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
)

const stripeAPIBase = "https://api.stripe.com/v1"

var (
	// ErrInvalidSignature means the webhook signature check failed.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrSignatureExpired means the webhook timestamp fell outside the tolerance window.
	ErrSignatureExpired = errors.New("webhook signature timestamp too old")
)

// signatureTolerance bounds webhook replay: events older than this are rejected.
const signatureTolerance = 5 * time.Minute

// StripeClient calls the Stripe REST API with form-encoded requests.
type StripeClient struct {
	secretKey     string
	webhookSecret string
	baseURL       string
	httpClient    *http.Client
}

// NewStripeClient creates a Stripe API client.
func NewStripeClient(secretKey, webhookSecret string) *StripeClient {
	return &StripeClient{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		baseURL:       stripeAPIBase,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Customer is the subset of Stripe's customer object we read.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// CheckoutSession is the subset of Stripe's checkout session object we read.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type customerList struct {
	Data []Customer `json:"data"`
}

type subscriptionList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (s *StripeClient) do(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	var body io.Reader
	if method != http.MethodGet && form != nil {
		body = strings.NewReader(form.Encode())
	}
	endpoint := s.baseURL + path
	if method == http.MethodGet && form != nil {
		endpoint += "?" + form.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("stripe request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read stripe response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("stripe %s %s: status %d: %s", method, path, resp.StatusCode, raw)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode stripe response: %w", err)
		}
	}
	return nil
}

// FindCustomerByEmail returns the first customer matching the email, or nil.
func (s *StripeClient) FindCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	form := url.Values{"email": {email}, "limit": {"1"}}
	var list customerList
	if err := s.do(ctx, http.MethodGet, "/customers", form, &list); err != nil {
		return nil, err
	}
	if len(list.Data) == 0 {
		return nil, nil
	}
	return &list.Data[0], nil
}

// CreateCustomer creates a customer with the user's email.
func (s *StripeClient) CreateCustomer(ctx context.Context, email string) (*Customer, error) {
	form := url.Values{"email": {email}}
	var customer Customer
	if err := s.do(ctx, http.MethodPost, "/customers", form, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// CustomerHasActiveSubscription reports whether the customer already holds an
// active subscription on the provider side.
func (s *StripeClient) CustomerHasActiveSubscription(ctx context.Context, customerID string) (bool, error) {
	form := url.Values{
		"customer": {customerID},
		"status":   {"active"},
		"limit":    {"1"},
	}
	var list subscriptionList
	if err := s.do(ctx, http.MethodGet, "/subscriptions", form, &list); err != nil {
		return false, err
	}
	return len(list.Data) > 0, nil
}

// CreateCheckoutSession creates a subscription-mode checkout session.
func (s *StripeClient) CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL string) (*CheckoutSession, error) {
	form := url.Values{
		"mode":                       {"subscription"},
		"customer":                   {customerID},
		"line_items[0][price]":       {priceID},
		"line_items[0][quantity]":    {"1"},
		"success_url":                {successURL},
		"cancel_url":                 {cancelURL},
		"allow_promotion_codes":      {"true"},
		"billing_address_collection": {"auto"},
	}
	var session CheckoutSession
	if err := s.do(ctx, http.MethodPost, "/checkout/sessions", form, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// WebhookEvent is the envelope delivered to the webhook endpoint.
type WebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// VerifySignature checks a Stripe-Signature header (t=...,v1=...) against the
// payload using HMAC-SHA256 over "t.payload".
func (s *StripeClient) VerifySignature(payload []byte, header string, now time.Time) error {
	var timestamp int64
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return ErrInvalidSignature
			}
			timestamp = ts
		case "v1":
			candidates = append(candidates, kv[1])
		}
	}
	if timestamp == 0 || len(candidates) == 0 {
		return ErrInvalidSignature
	}
	if now.Sub(time.Unix(timestamp, 0)) > signatureTolerance {
		return ErrSignatureExpired
	}

	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	fmt.Fprintf(mac, "%d.%s", timestamp, payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	for _, candidate := range candidates {
		if hmac.Equal([]byte(expected), []byte(candidate)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// SignPayload produces a valid Stripe-Signature header for tests.
func (s *StripeClient) SignPayload(payload []byte, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}
