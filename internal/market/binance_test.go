package market

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSignedRequestSignatureIsFinalParameter(t *testing.T) {
	var rawQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	client := NewBinanceClient("test-key", "test-secret", false, zerolog.Nop())
	client.SetBaseURL(srv.URL)

	if _, err := client.GetOpenOrders(context.Background(), "BTCUSDT"); err != nil {
		t.Fatalf("signed request failed: %v", err)
	}

	idx := strings.Index(rawQuery, "&signature=")
	if idx < 0 {
		t.Fatalf("signed query should end with a signature parameter, got %q", rawQuery)
	}
	payload := rawQuery[:idx]
	sig := rawQuery[idx+len("&signature="):]
	if strings.Contains(sig, "&") {
		t.Fatalf("signature must be the final query parameter, got %q", rawQuery)
	}

	mac := hmac.New(sha256.New, []byte("test-secret"))
	mac.Write([]byte(payload))
	if want := hex.EncodeToString(mac.Sum(nil)); sig != want {
		t.Errorf("signature should be the HMAC of the preceding query string, got %s want %s", sig, want)
	}
}

func TestPublicRequestIsUnsigned(t *testing.T) {
	var rawQuery, apiKeyHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		apiKeyHeader = r.Header.Get("X-MBX-APIKEY")
		w.Write([]byte(`{"markPrice":"100.5"}`))
	}))
	defer srv.Close()

	client := NewBinanceClient("test-key", "test-secret", false, zerolog.Nop())
	client.SetBaseURL(srv.URL)

	if _, err := client.GetMarkPrice(context.Background(), "BTCUSDT"); err != nil {
		t.Fatalf("public request failed: %v", err)
	}

	if strings.Contains(rawQuery, "signature=") {
		t.Errorf("public endpoints must not be signed, got %q", rawQuery)
	}
	if apiKeyHeader != "" {
		t.Error("public endpoints must not send the API key header")
	}
}
