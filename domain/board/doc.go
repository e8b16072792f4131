// Package board implements the 4x4 encrypted board engine. Every operation
// is a pure function over opaque ciphertext handles: move validity, cell
// reads and writes, collision detection and winner computation are all
// evaluated as oblivious circuits, never branching on a cleartext.
//
// # Oblivious Random Access
//
// Encrypted coordinates cannot index an array directly, so ReadCell and
// WriteCell evaluate a coordinate-match boolean for every slot and select
// between the old and new value. The per-axis matches are computed once
// (4 + 4 comparisons) and combined pairwise for the 16 cells, instead of
// recomputing both comparisons per cell.
//
// # Winner Detection
//
// ComputeWinner evaluates every row, column and both diagonals in full;
// encrypted branching makes short-circuiting impossible. If two different
// marks each complete a line the result is a draw. Normal play cannot
// produce that board, the branch is a safety net rather than a game rule.
//
// # Failure Semantics
//
// The engine never rejects a move itself. Invalid input yields an encrypted
// invalid flag for the caller to act on after decryption.
package board
