// Package proxy sends outbound HTTP requests on behalf of gateway callers.
//
// Policy enforces the rules every proxied request must satisfy: an http or
// https URL, a method from SupportedMethods and, when configured, a host
// allow-list and a ban on dialing private addresses. Client applies the
// policy to the initial request and to every redirect, bounds each call
// with a timeout and a response size limit, and returns upstream responses
// of any status as data.
//
// Example:
//
//	policy, err := proxy.NewPolicy(proxy.PolicyConfig{BlockPrivate: true})
//	if err != nil {
//	    return err
//	}
//	client := proxy.NewClient(proxy.Config{Policy: policy})
//	resp, err := client.Get(ctx, "https://api.example.com/price")
package proxy
