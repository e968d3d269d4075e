package billing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignatureRoundTrip(t *testing.T) {
	client := NewStripeClient("sk_test", "whsec_test")
	payload := []byte(`{"id":"evt_1","type":"customer.created"}`)
	now := time.Now()

	header := client.SignPayload(payload, now)
	assert.NoError(t, client.VerifySignature(payload, header, now))
}

func TestVerifySignatureRejectsTampering(t *testing.T) {
	client := NewStripeClient("sk_test", "whsec_test")
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now()
	header := client.SignPayload(payload, now)

	err := client.VerifySignature([]byte(`{"id":"evt_2"}`), header, now)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	signer := NewStripeClient("sk_test", "whsec_other")
	verifier := NewStripeClient("sk_test", "whsec_test")
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now()

	err := verifier.VerifySignature(payload, signer.SignPayload(payload, now), now)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifySignatureRejectsOldTimestamp(t *testing.T) {
	client := NewStripeClient("sk_test", "whsec_test")
	payload := []byte(`{"id":"evt_1"}`)
	signedAt := time.Now().Add(-10 * time.Minute)

	err := client.VerifySignature(payload, client.SignPayload(payload, signedAt), time.Now())
	assert.ErrorIs(t, err, ErrSignatureExpired)
}

func TestVerifySignatureRejectsMalformedHeader(t *testing.T) {
	client := NewStripeClient("sk_test", "whsec_test")
	for _, header := range []string{"", "v1=abc", "t=notanumber,v1=abc", "t=123"} {
		assert.Error(t, client.VerifySignature([]byte("x"), header, time.Now()), "header %q", header)
	}
}

func TestCreateCheckoutSessionRequest(t *testing.T) {
	var gotPath string
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		w.Write([]byte(`{"id":"cs_123","url":"https://checkout.stripe.com/pay/cs_123"}`))
	}))
	defer srv.Close()

	client := NewStripeClient("sk_test", "whsec_test")
	client.baseURL = srv.URL

	session, err := client.CreateCheckoutSession(context.Background(), "cus_1", "price_1", "https://app.test/ok", "https://app.test/cancel")
	require.NoError(t, err)
	assert.Equal(t, "/checkout/sessions", gotPath)
	assert.Equal(t, "subscription", gotForm.Get("mode"))
	assert.Equal(t, "cus_1", gotForm.Get("customer"))
	assert.Equal(t, "price_1", gotForm.Get("line_items[0][price]"))
	assert.Equal(t, "https://checkout.stripe.com/pay/cs_123", session.URL)
}

func TestFindCustomerByEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "a@b.test", r.URL.Query().Get("email"))
		w.Write([]byte(`{"data":[{"id":"cus_9","email":"a@b.test"}]}`))
	}))
	defer srv.Close()

	client := NewStripeClient("sk_test", "whsec_test")
	client.baseURL = srv.URL

	customer, err := client.FindCustomerByEmail(context.Background(), "a@b.test")
	require.NoError(t, err)
	require.NotNil(t, customer)
	assert.Equal(t, "cus_9", customer.ID)
}
