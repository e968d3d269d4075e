package chat

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(endpoint string) *Config {
	return &Config{
		EndpointURL:     endpoint,
		APIKey:          "sk-test",
		Model:           "gpt-4o-mini",
		MaxOutputTokens: 256,
		Enabled:         true,
	}
}

func sseHandler(lines []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n\n", line)
		}
	}
}

func TestCompleteAccumulatesDeltas(t *testing.T) {
	srv := httptest.NewServer(sseHandler([]string{
		`data: {"choices":[{"delta":{"content":"Hi"}}]}`,
		`data: {"choices":[{"delta":{"content":" there"}}]}`,
		`data: [DONE]`,
	}))
	defer srv.Close()

	client := NewStreamClient(5*time.Second, nil)
	var deltas []string
	reply, err := client.Complete(context.Background(), testConfig(srv.URL), []Turn{{Role: "user", Content: "hello"}}, func(d string) {
		deltas = append(deltas, d)
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi there", reply)
	assert.Equal(t, []string{"Hi", " there"}, deltas)
}

func TestCompleteSkipsMalformedFragments(t *testing.T) {
	srv := httptest.NewServer(sseHandler([]string{
		`data: {"choices":[{"delta":{"content":"A"}}]}`,
		`data: {not json`,
		`: heartbeat comment`,
		`data: {"choices":[]}`,
		`data: {"choices":[{"delta":{"content":"B"}}]}`,
		`data: [DONE]`,
	}))
	defer srv.Close()

	client := NewStreamClient(5*time.Second, nil)
	reply, err := client.Complete(context.Background(), testConfig(srv.URL), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "AB", reply)
}

func TestCompleteStopsAtDoneSentinel(t *testing.T) {
	srv := httptest.NewServer(sseHandler([]string{
		`data: {"choices":[{"delta":{"content":"before"}}]}`,
		`data: [DONE]`,
		`data: {"choices":[{"delta":{"content":"after"}}]}`,
	}))
	defer srv.Close()

	client := NewStreamClient(5*time.Second, nil)
	reply, err := client.Complete(context.Background(), testConfig(srv.URL), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "before", reply)
}

func TestCompleteUpstreamErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewStreamClient(5*time.Second, nil)
	_, err := client.Complete(context.Background(), testConfig(srv.URL), nil, nil)
	assert.ErrorIs(t, err, ErrUpstreamStatus)
}

func TestCompleteSendsAuthAndPayload(t *testing.T) {
	var gotAuth string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotBody = make([]byte, r.ContentLength)
		r.Body.Read(gotBody)
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client := NewStreamClient(5*time.Second, nil)
	_, err := client.Complete(context.Background(), testConfig(srv.URL), []Turn{{Role: "user", Content: "ping"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.JSONEq(t, `{"model":"gpt-4o-mini","messages":[{"role":"user","content":"ping"}],"max_tokens":256,"stream":true}`, string(gotBody))
}
