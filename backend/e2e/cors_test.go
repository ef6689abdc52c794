// ABOUTME: Integration tests for CORS handling through the full middleware chain
// ABOUTME: Verifies allow-listed origins, blocked origins, and preflight responses

package e2e

import (
	"net/http"
	"testing"
)

func TestCORSIntegration(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"CORS_ALLOWED_ORIGINS": "https://example.com, http://localhost:5173",
	})

	tests := []struct {
		name       string
		origin     string
		wantOrigin string
	}{
		{"allowed origin gets CORS headers", "https://example.com", "https://example.com"},
		{"localhost dev origin gets CORS headers", "http://localhost:5173", "http://localhost:5173"},
		{"unlisted origin gets no CORS headers", "https://evil.example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/health", nil)
			req.Header.Set("Origin", tt.origin)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Errorf("Status = %d, want 200", resp.StatusCode)
			}
			if got := resp.Header.Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
		})
	}
}

func TestCORSIntegration_Preflight(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"CORS_ALLOWED_ORIGINS": "https://example.com",
	})

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/fabrics/edge-1", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "PUT")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); got != "GET, POST, PUT, OPTIONS" {
		t.Errorf("Access-Control-Allow-Methods = %q", got)
	}
}
