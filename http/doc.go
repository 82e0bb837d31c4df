// Package http exposes the gateway over HTTP.
//
// Every request is admitted in two steps: the rate limiter counts it
// against the caller's fingerprint, then the shared secret in the
// X-CRYPTOSHEET-SECRET header is checked. A wrong secret is answered with
// 401 even when the caller is also over its limit.
//
// # Routes
//
//	GET    /health            liveness, never authenticated
//	GET    /metrics           Prometheus metrics, when enabled
//	GET    /{key}             fetch a value; blob keys return raw bytes
//	GET    /basic?key=        same as GET /{key}
//	POST   /basic             {key, value} -> {response}
//	DELETE /basic?key=        -> {updated}
//	POST   /cmd               {cmd, args} -> {response}
//	GET    /get?<url>         proxy a GET to the raw query string
//	POST   /url               {url, method, body, headers} -> {data, status, statusText, headers}
//	GET    /eval?<script>     run the raw query string -> {result}
//	POST   /eval              {script, useEthers, timeout} -> {result}
//	POST   /upload            multipart "key" and "file" -> {response, mimetype, originalname, size}
//
// Reads require the secret unless HandlerConfig.ProtectReads is false.
//
// # Errors
//
// Failures are written as {"error": message, "code": kind, ...fields}:
//
//	invalid_input      400
//	unauthorized       401
//	rate_limited       429
//	upstream_error     500
//	timeout            500
//	script_error       500
//	not_implemented    501
//
// # Usage
//
//	handler := http.NewHandler(&http.HandlerConfig{
//	    Secret:       secret,
//	    ProtectReads: true,
//	    Limiter:      limiter,
//	}, service, proxyClient, executor)
//	srv := &nethttp.Server{Addr: ":8080", Handler: handler.Router()}
package http
