package minikit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseTransaction_StatusPrecedence(t *testing.T) {
	tx, err := parseTransaction("tx1", []byte(`{"status":"pending","transactionStatus":"mined","transactionHash":"0xabc"}`))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if tx.RawStatus != "mined" {
		t.Fatalf("raw status=%q want mined (transactionStatus precedence)", tx.RawStatus)
	}
	if tx.Hash != "0xabc" {
		t.Fatalf("hash=%q want 0xabc", tx.Hash)
	}
}

func TestParseTransaction_FallbackFields(t *testing.T) {
	tx, err := parseTransaction("tx1", []byte(`{"status":"failed","transaction_hash":"0xdef"}`))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if tx.RawStatus != "failed" {
		t.Fatalf("raw status=%q want failed", tx.RawStatus)
	}
	if tx.Hash != "0xdef" {
		t.Fatalf("hash=%q want 0xdef", tx.Hash)
	}
}

func TestParseTransaction_BothStatusesAbsent(t *testing.T) {
	tx, err := parseTransaction("tx1", []byte(`{"transactionId":"tx1"}`))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if tx.RawStatus != "" {
		t.Fatalf("raw status=%q want empty", tx.RawStatus)
	}
}

func TestGetTransaction_RequestShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test" {
			t.Fatalf("auth header=%q", got)
		}
		if got := r.URL.Query().Get("app_id"); got != "app_123" {
			t.Fatalf("app_id=%q", got)
		}
		w.Write([]byte(`{"transactionStatus":"confirmed","transactionHash":"0x1"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "app_123", "sk_test")
	tx, err := c.GetTransaction(context.Background(), "txid-1")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if tx.RawStatus != "confirmed" || tx.Hash != "0x1" {
		t.Fatalf("tx=%+v", tx)
	}
}

func TestGetTransaction_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "", "")
	if _, err := c.GetTransaction(context.Background(), "txid-1"); err == nil {
		t.Fatalf("expected error")
	}
}
