// Package sandbox runs caller-supplied JavaScript in isolated, time-boxed
// runtimes.
//
// Every job gets a new goja runtime that only has the ECMAScript builtins
// plus the capabilities installed from a Registry:
//
//   - crypto: hashing (md5, sha1, sha256, sha512, sha3, keccak256, blake3),
//     HMAC, random bytes and UUIDs
//   - lodash (also bound to _): the lodash 4 API, embedded as JavaScript
//     and compiled once per process
//   - ethers (optional, per job): keccak, addresses, EIP-191 message
//     signing and recovery, unit conversion, base58
//
// There is no module loader, console, timer, file system or network access.
// A job is interrupted when its timeout fires or its context is cancelled,
// and deep recursion is bounded by a call stack limit. The timeout also
// covers the wait for a free execution slot. Promise jobs run to
// completion before the result is taken, so async functions work and a
// promise result is unwrapped; a promise that never settles is an error.
//
// The value a script evaluates to becomes the job result:
//
//	exec := sandbox.New(sandbox.Config{})
//	res, err := exec.Execute(ctx, sandbox.Job{
//	    Source:  "_.sum([1, 2, 3])",
//	    Timeout: time.Second,
//	})
package sandbox
