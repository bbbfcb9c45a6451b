package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClient(ts.URL, "test-key", 1000, 3, 100), ts
}

func TestGetNumberParsesAccessLine(t *testing.T) {
	var gotQuery map[string]string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"action":  q.Get("action"),
			"key":     q.Get("key"),
			"country": q.Get("country"),
			"service": q.Get("service"),
		}
		_, _ = w.Write([]byte("ACCESS_NUMBER:txn-42:+15551234567\n"))
	})

	txn, phone, err := c.GetNumber(context.Background(), "india", "wa")
	if err != nil {
		t.Fatalf("GetNumber: %v", err)
	}
	if txn != "txn-42" || phone != "+15551234567" {
		t.Fatalf("got txn=%q phone=%q", txn, phone)
	}
	want := map[string]string{"action": "getNumber", "key": "test-key", "country": "india", "service": "wa"}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Errorf("query %s = %q, want %q", k, gotQuery[k], v)
		}
	}
}

func TestGetNumberReject(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("NO_NUMBERS"))
	})

	_, _, err := c.GetNumber(context.Background(), "india", "wa")
	var reject *RejectError
	if !errors.As(err, &reject) {
		t.Fatalf("want RejectError, got %v", err)
	}
	if reject.Message != "NO_NUMBERS" {
		t.Fatalf("reject message = %q", reject.Message)
	}
}

func TestGetNumberMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing phone", "ACCESS_NUMBER:txn-1"},
		{"empty txn", "ACCESS_NUMBER::+15551234567"},
		{"empty phone", "ACCESS_NUMBER:txn-1:"},
		{"extra field", "ACCESS_NUMBER:txn-1:+1555:extra"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			_, _, err := c.GetNumber(context.Background(), "india", "wa")
			var malformed *MalformedError
			if !errors.As(err, &malformed) {
				t.Fatalf("want MalformedError, got %v", err)
			}
		})
	}
}

func TestGetStatusTrimsBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") != "getStatus" {
			t.Errorf("action = %q", r.URL.Query().Get("action"))
		}
		if r.URL.Query().Get("id") != "txn-42" {
			t.Errorf("id = %q", r.URL.Query().Get("id"))
		}
		_, _ = w.Write([]byte("  STATUS_OK:4321 \n"))
	})

	got, err := c.GetStatus(context.Background(), "txn-42")
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if got != "STATUS_OK:4321" {
		t.Fatalf("status = %q", got)
	}
}

func TestCancelSendsSetStatus(t *testing.T) {
	var gotAction, gotStatus string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAction = r.URL.Query().Get("action")
		gotStatus = r.URL.Query().Get("status")
		_, _ = w.Write([]byte("ACCESS_CANCEL"))
	})

	if err := c.Cancel(context.Background(), "txn-42"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if gotAction != "setStatus" || gotStatus != "-1" {
		t.Fatalf("action=%q status=%q", gotAction, gotStatus)
	}
}

func TestServerErrorIsUnavailable(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.GetStatus(context.Background(), "txn-42")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("want ErrUnavailable, got %v", err)
	}
}

func TestTimeoutMapsToErrTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "test-key", 50, 3, 100)
	_, err := c.GetStatus(context.Background(), "txn-42")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("want ErrTimeout, got %v", err)
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	// threshold is 3; exhaust it
	for i := 0; i < 3; i++ {
		if _, err := c.GetStatus(context.Background(), "txn"); err == nil {
			t.Fatal("expected failure")
		}
	}

	// breaker now open: the request fails without touching the transport
	_, err := c.GetStatus(context.Background(), "txn")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("want ErrUnavailable from open breaker, got %v", err)
	}
}
