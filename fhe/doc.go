// Package fhe provides the confidential-compute substrate the game protocol
// runs on: opaque ciphertext handles, oblivious boolean circuits over them,
// and a decryption authority that reveals values together with a proof
// binding each cleartext to the exact handle it came from.
//
// # Core Components
//
// Engine: Holds the sealed value vault and performs encryption plus the
// equality/and/or/not/select operations. No operation ever branches on a
// cleartext; callers combine handles and only learn results after an
// explicit decryption step.
//
// Handle: An opaque reference to an encrypted byte. The ciphertext bytes are
// a real ElGamal encryption on the Ed25519 suite, so handles carry no
// information about the plaintext.
//
// Constants: A dependency-injected pool of encrypted enum constants (cell
// marks, winner values, coordinates). Created once per engine and passed
// into the board engine, so there is no hidden global state.
//
// Attestation: The validity proof returned by the decryption authority, an
// Ed25519 signature over the handle id and the revealed value. Verification
// fails if the cleartext is replayed against a different handle.
//
// # Decryption Gating
//
// A handle can only be revealed after AllowDecryption has been called on it.
// This mirrors the two-phase decrypt-confirm handshake: the protocol marks a
// value decryptable, the oracle reveals it with an attestation, and the
// protocol verifies the attestation before acting on the cleartext.
package fhe
