// Package cryptosheet provides the core of a gated key-value gateway: key
// validation, the store command allow-list, and the service that fronts a
// remote data store.
//
// The gateway lets a caller store and fetch opaque values and binary blobs
// under string keys, invoke a restricted subset of the store's commands,
// proxy outbound HTTP requests (see the proxy package) and run short
// scripts inside a capability-restricted sandbox (see the sandbox package).
//
// # Key Components
//
//   - Service: validates keys and dispatches value, blob and command
//     operations to a Store
//   - Store: interface over the remote data store (Redis, SQLite, PostgreSQL)
//   - ParseKey: key syntax and reserved-name checks
//   - IsAllowedCommand: the closed set of store commands callers may invoke
//
// # Keys
//
// Keys match ^[A-Za-z0-9\-_`]+$ with an optional ":file" suffix. A ":file"
// key holds a binary blob and has a companion "<key>:mimetype" record; the
// mimetype record decides whether the blob exists.
//
// # Example Usage
//
//	store, err := database.Connect(ctx, cfg.Store)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	service := cryptosheet.NewService(store.GetStore())
//	reply, err := service.Put(ctx, "greeting", []byte("hello"))
//
// See the http package for the REST API and the database package for the
// store backends.
package cryptosheet
