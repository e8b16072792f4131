package fhe

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"go.dedis.ch/kyber/v4"
	"go.dedis.ch/kyber/v4/suites"
)

var suite suites.Suite = suites.MustFind("Ed25519")

var (
	ErrUnknownHandle   = errors.New("fhe: unknown handle")
	ErrNotDecryptable  = errors.New("fhe: handle not marked decryptable")
	ErrInvalidProof    = errors.New("fhe: attestation does not match handle")
	ErrHandleMismatch  = errors.New("fhe: value count does not match handle count")
	ErrEmptyHandleList = errors.New("fhe: empty handle list")
)

// Handle is an opaque reference to an encrypted byte value.
type Handle struct {
	ID         string `json:"id"`
	Ciphertext []byte `json:"ciphertext"`
}

// IsZero reports whether the handle is the zero value (no ciphertext behind it).
func (h Handle) IsZero() bool { return h.ID == "" }

// Engine is the confidential coprocessor: it encrypts byte values into
// handles and evaluates boolean circuits over them without revealing
// intermediate cleartexts to callers. The vault mapping handle ids to
// plaintexts is sealed inside the engine and only reachable through the
// decryption authority path (AllowDecryption + Reveal).
type Engine struct {
	mu          sync.Mutex
	vault       map[string]byte
	decryptable map[string]bool

	encPub  kyber.Point
	encPriv kyber.Scalar

	signPub  ed25519.PublicKey
	signPriv ed25519.PrivateKey
}

// NewEngine creates an engine with fresh encryption and attestation keys.
func NewEngine() (*Engine, error) {
	signPub, signPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating attestation key: %w", err)
	}
	encPriv := suite.Scalar().Pick(suite.RandomStream())
	return &Engine{
		vault:       make(map[string]byte),
		decryptable: make(map[string]bool),
		encPub:      suite.Point().Mul(encPriv, nil),
		encPriv:     encPriv,
		signPub:     signPub,
		signPriv:    signPriv,
	}, nil
}

// AttestationKey returns the public key verifying this engine's attestations.
func (e *Engine) AttestationKey() ed25519.PublicKey { return e.signPub }

// Encrypt seals a byte value into a fresh handle. The ciphertext is an
// ElGamal encryption of the value embedded as a curve point, so two
// encryptions of the same value are unlinkable.
func (e *Engine) Encrypt(v byte) Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seal(v)
}

// EncryptBool seals a boolean as 0 or 1.
func (e *Engine) EncryptBool(v bool) Handle {
	if v {
		return e.Encrypt(1)
	}
	return e.Encrypt(0)
}

// seal stores v in the vault under a fresh handle id. Caller holds e.mu.
func (e *Engine) seal(v byte) Handle {
	k := suite.Scalar().Pick(suite.RandomStream())
	K := suite.Point().Mul(k, nil)
	S := suite.Point().Mul(k, e.encPub)
	M := suite.Point().Embed([]byte{v}, suite.RandomStream())
	C := S.Add(S, M)

	kb, _ := K.MarshalBinary()
	cb, _ := C.MarshalBinary()
	ct := append(kb, cb...)

	sum := sha256.Sum256(ct)
	id := hex.EncodeToString(sum[:16])

	e.vault[id] = v
	return Handle{ID: id, Ciphertext: ct}
}

// lookup returns the plaintext behind a handle. Caller holds e.mu.
func (e *Engine) lookup(h Handle) (byte, error) {
	v, ok := e.vault[h.ID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownHandle, h.ID)
	}
	return v, nil
}

// Eq returns an encrypted boolean, true iff the two handles hold equal values.
func (e *Engine) Eq(a, b Handle) (Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	av, err := e.lookup(a)
	if err != nil {
		return Handle{}, err
	}
	bv, err := e.lookup(b)
	if err != nil {
		return Handle{}, err
	}
	return e.sealBool(av == bv), nil
}

// And returns the encrypted conjunction of two encrypted booleans.
func (e *Engine) And(a, b Handle) (Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	av, err := e.lookup(a)
	if err != nil {
		return Handle{}, err
	}
	bv, err := e.lookup(b)
	if err != nil {
		return Handle{}, err
	}
	return e.sealBool(av != 0 && bv != 0), nil
}

// Or returns the encrypted disjunction of two encrypted booleans.
func (e *Engine) Or(a, b Handle) (Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	av, err := e.lookup(a)
	if err != nil {
		return Handle{}, err
	}
	bv, err := e.lookup(b)
	if err != nil {
		return Handle{}, err
	}
	return e.sealBool(av != 0 || bv != 0), nil
}

// Not returns the encrypted negation of an encrypted boolean.
func (e *Engine) Not(a Handle) (Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	av, err := e.lookup(a)
	if err != nil {
		return Handle{}, err
	}
	return e.sealBool(av == 0), nil
}

// Select returns ifTrue when cond holds a non-zero value, ifFalse otherwise.
// Both branches are always materialized; there is no cleartext branching.
func (e *Engine) Select(cond, ifTrue, ifFalse Handle) (Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cv, err := e.lookup(cond)
	if err != nil {
		return Handle{}, err
	}
	tv, err := e.lookup(ifTrue)
	if err != nil {
		return Handle{}, err
	}
	fv, err := e.lookup(ifFalse)
	if err != nil {
		return Handle{}, err
	}
	if cv != 0 {
		return e.seal(tv), nil
	}
	return e.seal(fv), nil
}

func (e *Engine) sealBool(v bool) Handle {
	if v {
		return e.seal(1)
	}
	return e.seal(0)
}

// AllowDecryption marks a handle as publicly decryptable. Reveal refuses
// handles that were never allowed.
func (e *Engine) AllowDecryption(hs ...Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, h := range hs {
		if _, ok := e.vault[h.ID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownHandle, h.ID)
		}
	}
	for _, h := range hs {
		e.decryptable[h.ID] = true
	}
	return nil
}

// Reveal returns the cleartext behind a decryptable handle together with an
// attestation binding the cleartext to the handle id.
func (e *Engine) Reveal(h Handle) (byte, Attestation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.vault[h.ID]
	if !ok {
		return 0, Attestation{}, fmt.Errorf("%w: %s", ErrUnknownHandle, h.ID)
	}
	if !e.decryptable[h.ID] {
		return 0, Attestation{}, fmt.Errorf("%w: %s", ErrNotDecryptable, h.ID)
	}
	att := Attestation{
		HandleID:  h.ID,
		Value:     v,
		Signature: ed25519.Sign(e.signPriv, attestationDigest(h.ID, v)),
	}
	return v, att, nil
}
