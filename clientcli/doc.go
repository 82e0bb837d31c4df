// Package clientcli provides a client library for a cryptosheet gateway.
//
// It covers the gateway's surface: plain values, allow-listed store
// commands, blobs, the outbound proxy and the script sandbox. Requests
// carry the shared secret in the X-CRYPTOSHEET-SECRET header when one is
// configured. Profile-based configuration manages connections to more than
// one gateway.
//
// # Basic Usage
//
//	cfg := &clientcli.Config{
//		Endpoint: "http://localhost:3000",
//		Secret:   "shared-secret",
//	}
//
//	client, err := clientcli.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	_, err = client.Set(ctx, "price", json.RawMessage(`"42"`))
//	res, err := client.Eval(ctx, clientcli.EvalOptions{Script: "_.sum([1, 2, 3])"})
//
// Failed requests return an *APIError carrying the gateway's error code.
// Compare with the sentinels using errors.Is:
//
//	if errors.Is(err, clientcli.ErrRateLimited) {
//		var apiErr *clientcli.APIError
//		errors.As(err, &apiErr)
//		time.Sleep(apiErr.RetryAfter)
//	}
//
// # Profile Configuration
//
//	configFile, err := clientcli.LoadConfigFile("~/.cryptosheet/config.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	profile, err := configFile.GetProfile("production")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	client, err := clientcli.New(clientcli.ConfigFromProfile(profile))
package clientcli
