package ipfilter

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		allowedIPs []string
		wantCount  int
	}{
		{"empty list", []string{}, 0},
		{"single IP", []string{"192.168.1.1"}, 1},
		{"CIDR range", []string{"10.0.0.0/8"}, 1},
		{"multiple entries", []string{"192.168.1.1", "10.0.0.0/8", "172.16.0.0/12"}, 3},
		{"with whitespace", []string{"  192.168.1.1  ", " 10.0.0.0/8 "}, 2},
		{"invalid entries ignored", []string{"192.168.1.1", "invalid", "10.0.0.0/8"}, 2},
		{"IPv6", []string{"::1", "2001:db8::/32"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(tt.allowedIPs, newTestLogger())
			if f.Count() != tt.wantCount {
				t.Errorf("Count() = %d, want %d", f.Count(), tt.wantCount)
			}
			if f.Enabled() != (tt.wantCount > 0) {
				t.Errorf("Enabled() = %v, want %v", f.Enabled(), tt.wantCount > 0)
			}
		})
	}
}

func TestIsAllowedAddr(t *testing.T) {
	f := New([]string{"192.168.1.0/24", "10.1.2.3"}, newTestLogger())

	tests := []struct {
		addr string
		want bool
	}{
		{"192.168.1.55:12345", true},
		{"192.168.1.55", true},
		{"192.168.2.1:80", false},
		{"10.1.2.3:443", true},
		{"10.1.2.4:443", false},
		{"not-an-ip:80", false},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			if got := f.IsAllowedAddr(tt.addr); got != tt.want {
				t.Errorf("IsAllowedAddr(%q) = %v, want %v", tt.addr, got, tt.want)
			}
		})
	}

	// Empty filter allows everything
	open := New(nil, newTestLogger())
	if !open.IsAllowedAddr("203.0.113.9:1000") {
		t.Error("empty filter should allow all addresses")
	}
}

func TestMiddleware(t *testing.T) {
	f := New([]string{"192.168.1.1"}, newTestLogger())
	handler := f.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest("GET", "/metrics", nil)
	req.RemoteAddr = "192.168.1.1:9999"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("allowed address: status = %d, want %d", w.Code, http.StatusNoContent)
	}

	req = httptest.NewRequest("GET", "/metrics", nil)
	req.RemoteAddr = "203.0.113.9:9999"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("disallowed address: status = %d, want %d", w.Code, http.StatusForbidden)
	}
}
