package clients

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHttpClient_Get_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/test" {
			t.Fatalf("path = %s, want /test", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewHttpClient(srv.URL + "/")
	body, err := c.Get(context.Background(), "/test")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Fatalf("body = %s, want %s", string(body), `{"ok":true}`)
	}
}

func TestHttpClient_Get_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewHttpClient(srv.URL)
	_, err := c.Get(context.Background(), "/fail")
	var serr *StatusError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if serr.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", serr.StatusCode)
	}
}

func TestHttpClient_Get_RequestError(t *testing.T) {
	c := &HttpClient{
		BaseURL: "http://127.0.0.1:0",
		HttpClient: &http.Client{
			Timeout: 10 * time.Millisecond,
		},
	}
	if _, err := c.Get(context.Background(), "/path"); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestHathorNodeClient_ValidateAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1a/validate_address/WewDeXWyvHP7jJTs7tjLoQfoB72LLxJQqN":
			w.Write([]byte(`{"valid":true,"type":"p2pkh","script":"dqkU","address":"WewDeXWyvHP7jJTs7tjLoQfoB72LLxJQqN"}`))
		default:
			w.Write([]byte(`{"valid":false,"error":"ValueError","msg":"Invalid base58 address"}`))
		}
	}))
	defer srv.Close()

	c := NewHathorNodeClient(srv.URL)
	ok, err := c.ValidateAddress(context.Background(), "WewDeXWyvHP7jJTs7tjLoQfoB72LLxJQqN")
	if err != nil || !ok {
		t.Fatalf("ValidateAddress = %v, %v; want true, nil", ok, err)
	}
	ok, err = c.ValidateAddress(context.Background(), "nope")
	if err != nil || ok {
		t.Fatalf("ValidateAddress = %v, %v; want false, nil", ok, err)
	}
	ok, err = c.ValidateAddress(context.Background(), "  ")
	if err != nil || ok {
		t.Fatalf("empty ValidateAddress = %v, %v; want false, nil", ok, err)
	}
}

func TestHathorNodeClient_Version(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1a/version" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"version":"0.63.0","network":"testnet-golf"}`))
	}))
	defer srv.Close()

	v, err := NewHathorNodeClient(srv.URL).Version(context.Background())
	if err != nil {
		t.Fatalf("Version error: %v", err)
	}
	if v.Network != "testnet-golf" {
		t.Fatalf("network = %s, want testnet-golf", v.Network)
	}
}
