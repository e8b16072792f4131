// Package ledger implements the authoritative, serializing substrate for the
// confidential board game: the registry of Game and Move records, the
// transaction interface state-changing calls go through, stake escrow
// accounts, and an append-only hash-chained audit log of every confirmed
// action.
//
// # Core Components
//
// Ledger: Owns all game state. Every state-changing call is atomic with
// respect to the ledger; two players' clients racing against the same game
// are serialized here, and the explicit collision step of the protocol
// handles the case where both picked the same cell.
//
// Chain: An append-only log of confirmed actions with cryptographic hash
// chaining for tamper detection. Once recorded, entries cannot be modified
// without breaking the chain, and Verify can audit the full history at any
// time.
//
// # Transaction Interface
//
// Call submits a named action and returns a transaction id; Status reports
// pending, success, reverted or notFound for that id. Clients never assume a
// submitted call landed: they poll Status and treat a missing id as a
// dropped transaction. Protocol-invalid input reverts the transaction with a
// reason instead of failing the call.
package ledger
