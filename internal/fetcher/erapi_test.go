package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestERAPIFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest/USD" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Fatalf("User-Agent not forwarded: %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"success","base_code":"USD","rates":{"USD":1,"JPY":151.25}}`))
	}))
	defer srv.Close()

	p := NewERAPI(ERAPIOptions{BaseURL: srv.URL, Timeout: time.Second, UserAgent: "test-agent"}, noopLogger())
	rate, err := p.FetchRate(context.Background(), "USD")
	if err != nil {
		t.Fatalf("FetchRate should succeed: %v", err)
	}
	if rate != 151.25 {
		t.Fatalf("expected 151.25, got %v", rate)
	}
}

func TestERAPIFaultReasons(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		reason  Reason
		message string
	}{
		{"non-success status", http.StatusServiceUnavailable, `{}`, ReasonStatus, "USD: HTTP 503"},
		{"malformed json", http.StatusOK, `{"rates":`, ReasonPayload, "USD: invalid payload"},
		{"missing quote", http.StatusOK, `{"rates":{"EUR":0.9}}`, ReasonPayload, "USD: invalid payload"},
		{"string quote", http.StatusOK, `{"rates":{"JPY":"150"}}`, ReasonPayload, "USD: invalid payload"},
		{"non-positive quote", http.StatusOK, `{"rates":{"JPY":0}}`, ReasonPayload, "USD: invalid payload"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			p := NewERAPI(ERAPIOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
			_, err := p.FetchRate(context.Background(), "USD")

			var fault *Fault
			if !errors.As(err, &fault) {
				t.Fatalf("expected *Fault, got %v", err)
			}
			if fault.Reason != tc.reason {
				t.Fatalf("expected reason %s, got %s", tc.reason, fault.Reason)
			}
			if fault.Error() != tc.message {
				t.Fatalf("expected message %q, got %q", tc.message, fault.Error())
			}
		})
	}
}

func TestERAPITransportFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := NewERAPI(ERAPIOptions{BaseURL: url, Timeout: time.Second}, noopLogger())
	_, err := p.FetchRate(context.Background(), "EUR")

	var fault *Fault
	if !errors.As(err, &fault) || fault.Reason != ReasonTransport {
		t.Fatalf("closed server should yield transport fault, got %v", err)
	}
	if !strings.HasPrefix(fault.Error(), "EUR: ") {
		t.Fatalf("fault message should name the currency: %q", fault.Error())
	}
}
