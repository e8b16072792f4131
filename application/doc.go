// Package application implements the per-participant protocol orchestrator:
// the driver that observes ledger state, decides which protocol step to
// execute next, and survives crashes mid-protocol without duplicating work.
//
// # Crash Safety
//
// Two durable records back every decision. AttemptedMove logs every
// coordinate the local participant has tried, written before the network
// call that submits it, so "cells I must never retry" survives a restart
// regardless of confirmation latency. TxMarker holds at most one in-flight
// transaction per protocol action per game; on every tick a pending marker
// is resolved against the ledger before anything new is submitted. Both live
// in a local Badger database.
//
// # Retry Policy
//
// Transient infrastructure failures (oracle 5xx/429, connection errors) are
// retried with bounded exponential backoff plus jitter. Non-retryable
// failures propagate immediately. Exhausting the retry budget surfaces a
// RetryError that still carries the last upstream failure, so callers can
// tell infrastructure trouble from logic errors.
package application
