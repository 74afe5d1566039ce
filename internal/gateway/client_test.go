package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchPayment(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 123456789, "status": "approved", "external_reference": "order-1"}`))
	}))
	defer srv.Close()

	c := NewClient("mercadopago", srv.URL, "test-token", time.Second, nil)
	pay, err := c.FetchPayment(context.Background(), "123456789")
	if err != nil {
		t.Fatalf("FetchPayment: %v", err)
	}

	if gotAuth != "Bearer test-token" {
		t.Fatalf("auth header: %q", gotAuth)
	}
	if gotPath != "/v1/payments/123456789" {
		t.Fatalf("path: %q", gotPath)
	}
	if pay.ID != "123456789" || pay.Status != StatusApproved || pay.OrderRef != "order-1" {
		t.Fatalf("unexpected payment: %+v", pay)
	}
}

func TestFetchPayment_NonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"payment not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient("mercadopago", srv.URL, "test-token", time.Second, nil)
	_, err := c.FetchPayment(context.Background(), "missing")
	if !errors.Is(err, ErrVerification) {
		t.Fatalf("expected ErrVerification, got %v", err)
	}
}

func TestFetchPayment_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient("mercadopago", srv.URL, "test-token", 20*time.Millisecond, nil)
	_, err := c.FetchPayment(context.Background(), "slow")
	if !errors.Is(err, ErrVerification) {
		t.Fatalf("expected ErrVerification on timeout, got %v", err)
	}
}

func TestFetchPayment_UnknownStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": 1, "status": "partially_approved", "external_reference": "order-1"}`))
	}))
	defer srv.Close()

	c := NewClient("mercadopago", srv.URL, "test-token", time.Second, nil)
	_, err := c.FetchPayment(context.Background(), "1")
	if !errors.Is(err, ErrUnknownProviderStatus) {
		t.Fatalf("expected ErrUnknownProviderStatus, got %v", err)
	}
	if errors.Is(err, ErrVerification) {
		t.Fatal("unknown status must not be classed as transient")
	}
}

func TestFetchPayment_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": `))
	}))
	defer srv.Close()

	c := NewClient("mercadopago", srv.URL, "test-token", time.Second, nil)
	_, err := c.FetchPayment(context.Background(), "1")
	if !errors.Is(err, ErrVerification) {
		t.Fatalf("expected ErrVerification for malformed body, got %v", err)
	}
}

func TestMapStatus(t *testing.T) {
	known := []string{
		"approved", "pending", "in_process", "authorized", "rejected",
		"cancelled", "refunded", "charged_back", "in_mediation",
	}
	for _, raw := range known {
		got, err := MapStatus(raw)
		if err != nil {
			t.Fatalf("MapStatus(%q): %v", raw, err)
		}
		if string(got) != raw {
			t.Fatalf("MapStatus(%q) = %q", raw, got)
		}
	}

	for _, raw := range []string{"", "APPROVED", "paid", "unknown"} {
		if _, err := MapStatus(raw); !errors.Is(err, ErrUnknownProviderStatus) {
			t.Fatalf("MapStatus(%q): expected ErrUnknownProviderStatus, got %v", raw, err)
		}
	}
}
