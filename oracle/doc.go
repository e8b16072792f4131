// Package oracle implements the asynchronous decryption oracle: the service
// that reveals decryptable handles with validity attestations, an HTTPS
// transport for it, and clients for both in-process and remote use.
//
// # Failure Model
//
// Infrastructure failures surface as StatusError values carrying HTTP-like
// status codes. Codes 429 and 5xx are retryable; everything else means the
// request itself was bad (for example a handle never marked decryptable) and
// retrying cannot help. The orchestrator's retry policy keys off
// StatusError.Retryable.
//
// # Transport
//
// The HTTPS server uses a self-signed certificate generated at startup; the
// matching client pins that certificate. Single-process setups can skip the
// transport entirely with the local client, which talks straight to the
// service.
package oracle
