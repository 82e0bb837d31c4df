// Package ratelimit implements the per-caller request limiter used during
// request admission.
//
// Callers are bucketed by Identity, a BLAKE3 fingerprint of the client
// address. Requests without an address share FallbackIdentity. The limiter keeps a log of accepted request times
// per identity and rejects a request when the log already holds the
// configured number of entries inside the rolling window.
//
// Limiter state is process-local. Run Sweep periodically to release idle
// identities.
package ratelimit
