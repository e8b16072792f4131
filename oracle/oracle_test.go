package oracle

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"

	"github.com/sapph1re/blindboard/fhe"
)

func newEngine(t *testing.T) *fhe.Engine {
	t.Helper()
	e, err := fhe.NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestServiceDecryptsAllowedHandles(t *testing.T) {
	e := newEngine(t)
	svc := NewService(e)

	a := e.Encrypt(1)
	b := e.Encrypt(2)
	if err := e.AllowDecryption(a, b); err != nil {
		t.Fatalf("AllowDecryption: %v", err)
	}

	res, err := svc.Decrypt([]fhe.Handle{a, b})
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if len(res.Attestations) != 2 {
		t.Fatalf("expected 2 attestations, got %d", len(res.Attestations))
	}
	if res.Attestations[0].Value != 1 || res.Attestations[1].Value != 2 {
		t.Fatalf("wrong cleartexts: %+v", res.Attestations)
	}
	for i, att := range res.Attestations {
		h := []fhe.Handle{a, b}[i]
		if err := att.Verify(e.AttestationKey(), h); err != nil {
			t.Fatalf("attestation %d: %v", i, err)
		}
	}
}

func TestServiceRejectsUndeclaredHandles(t *testing.T) {
	e := newEngine(t)
	svc := NewService(e)

	h := e.Encrypt(7)
	_, err := svc.Decrypt([]fhe.Handle{h})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", se.Code)
	}
	if se.Retryable() {
		t.Fatalf("a rejected request must not be retryable")
	}
}

func TestStatusErrorRetryable(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusBadRequest, false},
		{http.StatusUnprocessableEntity, false},
	}
	for _, tc := range cases {
		se := &StatusError{Code: tc.code}
		if se.Retryable() != tc.want {
			t.Fatalf("code %d: expected retryable=%v", tc.code, tc.want)
		}
	}
}

func TestHTTPSRoundTrip(t *testing.T) {
	e := newEngine(t)
	svc := NewService(e)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv, err := NewServer(svc, l.Addr().String())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv.Start(l)
	defer func() {
		if err := srv.Close(); err != nil {
			t.Logf("closing server: %v", err)
		}
	}()

	client, err := NewHTTPClient(l.Addr().String(), srv.CertPEM())
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}

	h := e.Encrypt(3)
	if err := e.AllowDecryption(h); err != nil {
		t.Fatalf("AllowDecryption: %v", err)
	}
	res, err := client.Decrypt(context.Background(), []fhe.Handle{h})
	if err != nil {
		t.Fatalf("Decrypt over HTTPS: %v", err)
	}
	if len(res.Attestations) != 1 || res.Attestations[0].Value != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if err := res.Attestations[0].Verify(e.AttestationKey(), h); err != nil {
		t.Fatalf("attestation failed verification after transport: %v", err)
	}

	// not-decryptable must map to a non-retryable client error
	_, err = client.Decrypt(context.Background(), []fhe.Handle{e.Encrypt(9)})
	var se *StatusError
	if !errors.As(err, &se) || se.Retryable() {
		t.Fatalf("expected non-retryable StatusError, got %v", err)
	}
}
