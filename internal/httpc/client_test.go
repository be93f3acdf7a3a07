package httpc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/snapshot":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte{0xff, 0xd8, 0xff})
		default:
			http.Error(w, "no frame yet", http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	body, ct, err := Fetch(context.Background(), nil, srv.URL+"/api/snapshot")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if ct != "image/jpeg" || len(body) != 3 {
		t.Errorf("got %q (%d bytes)", ct, len(body))
	}

	_, _, err = Fetch(context.Background(), nil, srv.URL+"/other")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if se.Code != http.StatusServiceUnavailable {
		t.Errorf("Code = %d, want 503", se.Code)
	}
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	if _, _, err := Fetch(context.Background(), NewClient(20*time.Millisecond), srv.URL); err == nil {
		t.Error("expected timeout error")
	}
}

func TestFetch_BadURL(t *testing.T) {
	if _, _, err := Fetch(context.Background(), nil, "://nope"); err == nil {
		t.Error("expected error for malformed URL")
	}
}
