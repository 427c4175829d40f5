package prefetch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func boolPtr(b bool) *bool { return &b }

func TestNewDefaults(t *testing.T) {
	client := New()

	if client == nil {
		t.Fatal("New() returned nil")
	}
	if !client.IsValid() {
		t.Fatalf("default configuration invalid: %v", client.ValidationError())
	}
	if client.retryCount != 3 {
		t.Errorf("expected retryCount=3, got %d", client.retryCount)
	}
	if client.retryDelay != 100*time.Millisecond {
		t.Errorf("expected retryDelay=100ms, got %v", client.retryDelay)
	}
	if client.timeout != 30*time.Second {
		t.Errorf("expected timeout=30s, got %v", client.timeout)
	}
	if client.cacheTTL != 5*time.Minute {
		t.Errorf("expected cacheTTL=5m, got %v", client.cacheTTL)
	}
	if client.cache == nil {
		t.Error("expected a default cache")
	}
}

func TestGetCachesWithinTTL(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"id":1}`)); err != nil {
			t.Fatalf("failed to write response: %v", err)
		}
	}))
	defer server.Close()

	client := New(WithBaseURL(server.URL), WithCacheTTL(5*time.Second))

	first, err := client.Get(context.Background(), "/api/user", nil)
	if err != nil {
		t.Fatalf("first Get returned error: %v", err)
	}
	second, err := client.Get(context.Background(), "/api/user", nil)
	if err != nil {
		t.Fatalf("second Get returned error: %v", err)
	}

	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("expected 1 network dispatch, got %d", got)
	}
	if second != first {
		t.Error("expected the cached response to be returned on the second call")
	}
	data, ok := second.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected decoded JSON object, got %T", second.Data)
	}
	if data["id"] != float64(1) {
		t.Errorf("expected id=1, got %v", data["id"])
	}
}

func TestPostNeverCached(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(WithBaseURL(server.URL))

	for i := 0; i < 2; i++ {
		if _, err := client.Post(context.Background(), "/api/items", map[string]any{"name": "x"}, nil); err != nil {
			t.Fatalf("Post %d returned error: %v", i, err)
		}
	}

	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Errorf("expected both POSTs to dispatch, got %d hits", got)
	}
}

func TestCacheDisabledPerCall(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(WithBaseURL(server.URL))
	opts := &RequestOptions{Cache: boolPtr(false)}

	for i := 0; i < 2; i++ {
		if _, err := client.Get(context.Background(), "/api/user", opts); err != nil {
			t.Fatalf("Get %d returned error: %v", i, err)
		}
	}

	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Errorf("expected cache-disabled GETs to dispatch twice, got %d hits", got)
	}
}

func TestRetryTimeoutThenSuccess(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n <= 2 {
			select {
			case <-time.After(500 * time.Millisecond):
			case <-r.Context().Done():
			}
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			t.Fatalf("failed to write response: %v", err)
		}
	}))
	defer server.Close()

	client := New(
		WithBaseURL(server.URL),
		WithTimeout(50*time.Millisecond),
		WithRetryCount(3),
		WithRetryDelay(5*time.Millisecond),
	)

	resp, err := client.Get(context.Background(), "/api/slow", nil)
	if err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if resp.Status != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.Status)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("expected exactly 3 transport invocations, got %d", got)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := New(WithBaseURL(server.URL), WithRetryCount(3), WithRetryDelay(time.Millisecond))

	_, err := client.Get(context.Background(), "/api/missing", nil)
	if err == nil {
		t.Fatal("expected an error for 404")
	}
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected *RequestError, got %T", err)
	}
	if reqErr.Type != ErrorTypeHTTPStatus || reqErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected HTTPStatus/404, got %s/%d", reqErr.Type, reqErr.StatusCode)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("expected no retries on 404, got %d hits", got)
	}
}

func TestRetryExhaustedOnServerError(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(WithBaseURL(server.URL), WithRetryCount(2), WithRetryDelay(time.Millisecond))

	_, err := client.Get(context.Background(), "/api/broken", nil)
	if err == nil {
		t.Fatal("expected an error for persistent 500")
	}
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected *RequestError, got %T", err)
	}
	if reqErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected the last error to surface, got status %d", reqErr.StatusCode)
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Errorf("expected 1+retryCount=3 attempts, got %d", got)
	}
}

func TestAuthInterceptorAndUnauthorizedSideEffect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token-123" {
			t.Errorf("expected injected Authorization header, got %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	token := "token-123"
	client := New(
		WithBaseURL(server.URL),
		WithRetryCount(0),
		WithRequestInterceptor(func(cfg *RequestConfig) (*RequestConfig, error) {
			cfg.Headers["Authorization"] = "Bearer " + token
			return cfg, nil
		}, nil),
		WithResponseInterceptor(nil, func(err error) error {
			var reqErr *RequestError
			if errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusUnauthorized {
				token = ""
			}
			return nil
		}),
	)

	_, err := client.Get(context.Background(), "/api/secure", nil)
	if err == nil {
		t.Fatal("expected the call to fail with 401")
	}
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.Type != ErrorTypeHTTPStatus || reqErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected HTTPStatus/401, got %v", err)
	}
	if token != "" {
		t.Error("expected the response interceptor to clear the token")
	}
}

func TestHeaderMergePerCallWins(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Env"); got != "call" {
			t.Errorf("expected per-call header to win, got %q", got)
		}
		if got := r.Header.Get("X-App"); got != "prefetch" {
			t.Errorf("expected default header to survive, got %q", got)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(
		WithBaseURL(server.URL),
		WithHeaders(map[string]string{"X-Env": "default", "X-App": "prefetch"}),
	)

	opts := &RequestOptions{Headers: map[string]string{"X-Env": "call"}}
	if _, err := client.Get(context.Background(), "/api/echo", opts); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
}

func TestPostSerializesJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %q", ct)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		if payload["name"] != "widget" {
			t.Errorf("expected name=widget, got %v", payload["name"])
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := New(WithBaseURL(server.URL))

	resp, err := client.Post(context.Background(), "/api/items", map[string]any{"name": "widget"}, nil)
	if err != nil {
		t.Fatalf("Post returned error: %v", err)
	}
	if resp.Status != http.StatusCreated {
		t.Errorf("expected status 201, got %d", resp.Status)
	}
}

func TestTextBodyDecoding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		if _, err := w.Write([]byte("hello world")); err != nil {
			t.Fatalf("failed to write response: %v", err)
		}
	}))
	defer server.Close()

	client := New(WithBaseURL(server.URL))

	resp, err := client.Get(context.Background(), "/api/text", nil)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if resp.Data != "hello world" {
		t.Errorf("expected raw text payload, got %v", resp.Data)
	}
	if resp.StatusText != http.StatusText(http.StatusOK) {
		t.Errorf("unexpected status text %q", resp.StatusText)
	}
}

func TestResolveURL(t *testing.T) {
	client := New(WithBaseURL("https://api.example.com/"))

	cases := []struct {
		path string
		want string
	}{
		{"/users", "https://api.example.com/users"},
		{"users", "https://api.example.com/users"},
		{"https://other.example.com/x", "https://other.example.com/x"},
		{"http://plain.example.com/y", "http://plain.example.com/y"},
		{"", "https://api.example.com"},
	}
	for _, tc := range cases {
		if got := client.resolveURL(tc.path); got != tc.want {
			t.Errorf("resolveURL(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestNetworkErrorNormalized(t *testing.T) {
	client := New(WithRetryCount(0))

	_, err := client.Get(context.Background(), "http://127.0.0.1:1/unreachable", nil)
	if err == nil {
		t.Fatal("expected a connection error")
	}
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected *RequestError, got %T", err)
	}
	if reqErr.Type != ErrorTypeNetwork {
		t.Errorf("expected Network error, got %s", reqErr.Type)
	}
	if reqErr.StatusCode != 0 {
		t.Errorf("network errors carry status 0, got %d", reqErr.StatusCode)
	}
	if reqErr.Cause == nil {
		t.Error("expected the transport error as cause")
	}
}

func TestRequestInterceptorRejectionSkipsDispatch(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	client := New(
		WithBaseURL(server.URL),
		WithRequestInterceptor(func(cfg *RequestConfig) (*RequestConfig, error) {
			return nil, errors.New("missing credentials")
		}, nil),
	)

	_, err := client.Get(context.Background(), "/api/user", nil)
	if err == nil {
		t.Fatal("expected the interceptor rejection to surface")
	}
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.Type != ErrorTypeInterceptor {
		t.Fatalf("expected Interceptor error, got %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 0 {
		t.Errorf("expected no dispatch after rejection, got %d hits", got)
	}
}

func TestDefaultUserAgentSentUnlessOverridden(t *testing.T) {
	var agents []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents = append(agents, r.Header.Get("User-Agent"))
	}))
	defer server.Close()

	client := New(WithBaseURL(server.URL), WithoutCache())
	if _, err := client.Get(context.Background(), "/api/ping", nil); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}

	custom := New(WithBaseURL(server.URL), WithoutCache(), WithHeader("User-Agent", "renderer/2"))
	if _, err := custom.Get(context.Background(), "/api/ping", nil); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}

	if want := userAgent(); agents[0] != want {
		t.Errorf("expected default User-Agent %q, got %q", want, agents[0])
	}
	if agents[1] != "renderer/2" {
		t.Errorf("expected the caller's User-Agent to win, got %q", agents[1])
	}
}
