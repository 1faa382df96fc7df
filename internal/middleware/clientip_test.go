package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseProxies(t *testing.T) {
	got, err := ParseProxies([]string{"127.0.0.1", " 10.0.0.0/8 ", "", "::1"})
	if err != nil {
		t.Fatalf("ParseProxies() error = %v", err)
	}
	if len(got) != 3 || got[0].String() != "127.0.0.1/32" || got[1].String() != "10.0.0.0/8" || got[2].String() != "::1/128" {
		t.Errorf("ParseProxies() = %v", got)
	}

	for _, bad := range []string{"localhost", "10.0.0.0/99"} {
		if _, err := ParseProxies([]string{bad}); err == nil {
			t.Errorf("ParseProxies(%q) should fail", bad)
		}
	}
}

func TestClientIP(t *testing.T) {
	trusted, err := ParseProxies([]string{"127.0.0.1", "10.0.0.0/8"})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		remote string
		xff    []string
		want   string
	}{
		{name: "direct peer", remote: "203.0.113.5:4000", want: "203.0.113.5"},
		{name: "untrusted peer ignores header", remote: "203.0.113.5:4000", xff: []string{"1.2.3.4"}, want: "203.0.113.5"},
		{name: "trusted proxy", remote: "127.0.0.1:4000", xff: []string{"198.51.100.7"}, want: "198.51.100.7"},
		{name: "spoofed leftmost hop", remote: "127.0.0.1:4000", xff: []string{"1.2.3.4, 198.51.100.7, 10.1.2.3"}, want: "198.51.100.7"},
		{name: "repeated headers", remote: "127.0.0.1:4000", xff: []string{"1.2.3.4", "198.51.100.8"}, want: "198.51.100.8"},
		{name: "garbage hop", remote: "127.0.0.1:4000", xff: []string{"nonsense"}, want: "127.0.0.1"},
		{name: "mapped ipv4 peer", remote: "[::ffff:127.0.0.1]:4000", xff: []string{"198.51.100.9"}, want: "198.51.100.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := ClientIP(trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = ClientIPFrom(r.Context(), r)
			}))

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for _, v := range tt.xff {
				r.Header.Add("X-Forwarded-For", v)
			}
			h.ServeHTTP(httptest.NewRecorder(), r)

			if got != tt.want {
				t.Errorf("client ip = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientIPFrom_WithoutMiddleware(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.10:5555"
	if got := ClientIPFrom(r.Context(), r); got != "192.0.2.10" {
		t.Errorf("ClientIPFrom() = %q", got)
	}
}
