package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serveAuth(keys []string, path, header string) *httptest.ResponseRecorder {
	handler := BearerAuthMiddleware(keys)(okHandler())
	req := httptest.NewRequest("GET", path, http.NoBody)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		keys   []string
		path   string
		header string
		want   int
	}{
		{"no keys", nil, "/state", "", http.StatusOK},
		{"empty string keys", []string{"", ""}, "/state", "", http.StatusOK},
		{"missing header", []string{"secret"}, "/state", "", http.StatusUnauthorized},
		{"basic scheme", []string{"secret"}, "/state", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"wrong key", []string{"secret"}, "/state", "Bearer wrong-key", http.StatusUnauthorized},
		{"valid key", []string{"secret"}, "/state", "Bearer secret", http.StatusOK},
		{"second key", []string{"key1", "key2"}, "/state", "Bearer key2", http.StatusOK},
		{"health exempt", []string{"secret"}, "/health", "", http.StatusOK},
		{"metrics exempt", []string{"secret"}, "/metrics", "", http.StatusOK},
		{"version exempt", []string{"secret"}, "/version", "", http.StatusOK},
		{"notifications guarded", []string{"secret"}, "/host/notifications", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serveAuth(tt.keys, tt.path, tt.header)
			if rr.Code != tt.want {
				t.Fatalf("got %d, want %d", rr.Code, tt.want)
			}
			if tt.want != http.StatusUnauthorized {
				return
			}
			var errResp ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if errResp.Code != CodeUnauthorized {
				t.Errorf("error code: got %s, want %s", errResp.Code, CodeUnauthorized)
			}
		})
	}
}
