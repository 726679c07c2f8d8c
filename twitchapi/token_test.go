package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/onnwee/streamportal/live"
)

func tokenServer(t *testing.T, calls *atomic.Int32, expiresIn int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %q, want client_credentials", got)
		}
		if got := r.PostForm.Get("client_id"); got != "test-client" {
			t.Errorf("client_id = %q, want test-client", got)
		}
		if got := r.PostForm.Get("client_secret"); got != "test-secret" {
			t.Errorf("client_secret = %q, want test-secret", got)
		}
		body := map[string]interface{}{
			"access_token": "test-token-" + string(rune('0'+n)),
			"token_type":   "bearer",
		}
		if expiresIn > 0 {
			body["expires_in"] = expiresIn
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestTokenSource_GetCached(t *testing.T) {
	var calls atomic.Int32
	server := tokenServer(t, &calls, 3600)

	ts := &TokenSource{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		HTTPClient: &http.Client{
			Transport: &tokenTransport{host: server.URL},
		},
	}
	ctx := context.Background()

	token1, err := ts.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if token1 != "test-token-1" {
		t.Errorf("Get() = %s, want test-token-1", token1)
	}
	token2, err := ts.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if token2 != token1 {
		t.Errorf("cached token = %s, want %s", token2, token1)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 token request, got %d", n)
	}
}

func TestTokenSource_RefreshesInsideMargin(t *testing.T) {
	var calls atomic.Int32
	// 30s is inside the 60s reuse margin, so every Get fetches.
	server := tokenServer(t, &calls, 30)
	ts := &TokenSource{ClientID: "test-client", ClientSecret: "test-secret", TokenURL: server.URL + "/oauth2/token"}

	first, err := ts.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	second, err := ts.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if first == second {
		t.Errorf("token not refreshed: %s", second)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("expected 2 token requests, got %d", n)
	}
}

func TestTokenSource_ZeroExpiryDefaultsToAnHour(t *testing.T) {
	var calls atomic.Int32
	server := tokenServer(t, &calls, 0)
	ts := &TokenSource{ClientID: "test-client", ClientSecret: "test-secret", TokenURL: server.URL}
	if _, err := ts.Get(context.Background()); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	ts.mu.RLock()
	left := time.Until(ts.expiresAt)
	ts.mu.RUnlock()
	if left < 55*time.Minute || left > 61*time.Minute {
		t.Errorf("expiry in %v, want about 60m", left)
	}
}

func TestTokenSource_SetTokenAndInvalidate(t *testing.T) {
	var calls atomic.Int32
	server := tokenServer(t, &calls, 3600)
	ts := &TokenSource{ClientID: "test-client", ClientSecret: "test-secret", TokenURL: server.URL}

	ts.SetToken("seeded", time.Now().Add(time.Hour))
	if tok, _ := ts.Get(context.Background()); tok != "seeded" {
		t.Fatalf("Get() = %s, want seeded", tok)
	}
	if calls.Load() != 0 {
		t.Fatal("seeded token should not trigger a request")
	}
	ts.Invalidate()
	if tok, _ := ts.Get(context.Background()); tok != "test-token-1" {
		t.Errorf("Get() after Invalidate = %s, want test-token-1", tok)
	}
}

func TestTokenSource_MissingCredentials(t *testing.T) {
	ts := &TokenSource{ClientID: "only-id"}
	_, err := ts.Get(context.Background())
	if !errors.Is(err, live.ErrConfigurationMissing) {
		t.Errorf("Get() error = %v, want ErrConfigurationMissing", err)
	}
}

func TestTokenSource_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":400,"message":"invalid client secret"}`))
	}))
	defer server.Close()

	ts := &TokenSource{ClientID: "test-client", ClientSecret: "bad", TokenURL: server.URL}
	_, err := ts.Get(context.Background())
	if !errors.Is(err, live.ErrTransport) {
		t.Errorf("Get() error = %v, want ErrTransport", err)
	}
}

func TestComputeExpiry(t *testing.T) {
	if d := time.Until(ComputeExpiry(120)); d < 119*time.Second || d > 121*time.Second {
		t.Errorf("ComputeExpiry(120) in %v", d)
	}
	if d := time.Until(ComputeExpiry(0)); d < 59*time.Minute {
		t.Errorf("ComputeExpiry(0) in %v, want ~60m", d)
	}
}

// tokenTransport sends every request to the test server.
type tokenTransport struct {
	host string
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	if t.host != "" {
		host := t.host
		if len(host) > 7 && host[:7] == "http://" {
			host = host[7:]
		}
		req.URL.Host = host
	}
	return http.DefaultTransport.RoundTrip(req)
}
