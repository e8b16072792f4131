// Package protocol implements the confidential move protocol for two-player
// 4x4 tic-tac-toe: the per-player move state machine, the multi-phase
// submit → decrypt → finalize handshake, and stake settlement.
//
// # Move State Machine
//
// Each player's move for a round walks NotSubmitted → Submitted →
// {Invalid, Made}. A move decrypted as invalid frees the slot for a fresh
// attempt. Once both players reach Made, the round is processed in encrypted
// form: collision detection, board write and winner computation happen
// without revealing either coordinate, and both move records are consumed.
//
// # Decrypt-Confirm Handshake
//
// Every state transition that depends on a hidden value is split in two:
// the protocol marks the relevant handle decryptable, an external oracle
// reveals it with an attestation, and the cleartext plus attestation are fed
// back in. Attestations are verified against the exact handle the protocol
// committed to, so a stale or forged cleartext cannot advance the game.
//
// # Settlement
//
// Stakes are escrowed at creation and join, and released exactly once at
// settlement: winner-take-all, an even split on draws, a full refund when an
// unjoined game is cancelled. The stake field is zeroed before any transfer.
package protocol
