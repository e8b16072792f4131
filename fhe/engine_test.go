package fhe

import (
	"testing"
)

func mustEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

// reveal force-allows decryption; test helper only.
func reveal(t *testing.T, e *Engine, h Handle) byte {
	t.Helper()
	if err := e.AllowDecryption(h); err != nil {
		t.Fatalf("AllowDecryption: %v", err)
	}
	v, _, err := e.Reveal(h)
	if err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	return v
}

func TestEncryptRoundTrip(t *testing.T) {
	e := mustEngine(t)
	for _, v := range []byte{0, 1, 2, 3, 255} {
		h := e.Encrypt(v)
		if h.IsZero() {
			t.Fatalf("expected non-zero handle")
		}
		if got := reveal(t, e, h); got != v {
			t.Fatalf("expected %d, got %d", v, got)
		}
	}
}

func TestEncryptionsAreUnlinkable(t *testing.T) {
	e := mustEngine(t)
	a := e.Encrypt(7)
	b := e.Encrypt(7)
	if a.ID == b.ID {
		t.Fatalf("two encryptions of the same value share a handle id")
	}
}

func TestBooleanCircuits(t *testing.T) {
	e := mustEngine(t)
	tr := e.EncryptBool(true)
	fa := e.EncryptBool(false)

	cases := []struct {
		name string
		op   func() (Handle, error)
		want byte
	}{
		{"and tt", func() (Handle, error) { return e.And(tr, tr) }, 1},
		{"and tf", func() (Handle, error) { return e.And(tr, fa) }, 0},
		{"or ff", func() (Handle, error) { return e.Or(fa, fa) }, 0},
		{"or tf", func() (Handle, error) { return e.Or(tr, fa) }, 1},
		{"not t", func() (Handle, error) { return e.Not(tr) }, 0},
		{"not f", func() (Handle, error) { return e.Not(fa) }, 1},
	}
	for _, tc := range cases {
		h, err := tc.op()
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got := reveal(t, e, h); got != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestEqAndSelect(t *testing.T) {
	e := mustEngine(t)
	a := e.Encrypt(2)
	b := e.Encrypt(2)
	c := e.Encrypt(3)

	eq, err := e.Eq(a, b)
	if err != nil {
		t.Fatalf("Eq: %v", err)
	}
	if got := reveal(t, e, eq); got != 1 {
		t.Fatalf("expected equal, got %d", got)
	}
	neq, err := e.Eq(a, c)
	if err != nil {
		t.Fatalf("Eq: %v", err)
	}

	x := e.Encrypt(10)
	y := e.Encrypt(20)
	sel, err := e.Select(neq, x, y)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got := reveal(t, e, sel); got != 20 {
		t.Fatalf("expected false branch 20, got %d", got)
	}
}

func TestRevealRequiresAllowDecryption(t *testing.T) {
	e := mustEngine(t)
	h := e.Encrypt(5)
	if _, _, err := e.Reveal(h); err == nil {
		t.Fatalf("expected error revealing a handle never marked decryptable")
	}
}

func TestUnknownHandleRejected(t *testing.T) {
	e := mustEngine(t)
	other := mustEngine(t)
	foreign := other.Encrypt(1)
	if _, err := e.Not(foreign); err == nil {
		t.Fatalf("expected error for handle from another engine")
	}
}

func TestAttestationBindsHandle(t *testing.T) {
	e := mustEngine(t)
	h := e.Encrypt(9)
	if err := e.AllowDecryption(h); err != nil {
		t.Fatalf("AllowDecryption: %v", err)
	}
	v, att, err := e.Reveal(h)
	if err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if v != 9 {
		t.Fatalf("expected 9, got %d", v)
	}
	if err := att.Verify(e.AttestationKey(), h); err != nil {
		t.Fatalf("expected valid attestation, got %v", err)
	}

	// replay against a different handle must fail
	other := e.Encrypt(9)
	if err := att.Verify(e.AttestationKey(), other); err == nil {
		t.Fatalf("expected replayed attestation to be rejected")
	}

	// tampered cleartext must fail
	att.Value = 8
	if err := att.Verify(e.AttestationKey(), h); err == nil {
		t.Fatalf("expected tampered attestation to be rejected")
	}
}

func TestConstantsPool(t *testing.T) {
	e := mustEngine(t)
	c := NewConstants(e)
	if got := reveal(t, e, c.MarkX); got != CellX {
		t.Fatalf("MarkX: expected %d, got %d", CellX, got)
	}
	if got := reveal(t, e, c.Draw); got != WinnerDraw {
		t.Fatalf("Draw: expected %d, got %d", WinnerDraw, got)
	}
	for i, h := range c.Coords {
		if got := reveal(t, e, h); got != byte(i) {
			t.Fatalf("Coords[%d]: expected %d, got %d", i, i, got)
		}
	}
}
