// Package httputil provides HTTP plumbing shared by the GitHub clients.
//
// # Overview
//
//   - [Transport]: an http.RoundTripper that paces requests per host,
//     retries transient status codes and bounds each attempt with a timeout
//
// # Pacing
//
// Every host gets its own token bucket (golang.org/x/time/rate) refilled
// once per MinDelay, so concurrent workers sharing one transport never hit a
// host more often than the configured delay allows.
//
// # Retries
//
// Responses whose status is in RetryCodes (default 500, 502, 503, 504, 408,
// 403) and network errors are retried up to Retries times with doubling
// backoff. 404 is never retried. When retries run out the last response is
// returned unchanged so the caller can decode the API error.
//
// Timeout applies to each attempt (headers and body), never to the pacing
// and backoff waits between attempts. Leave http.Client.Timeout unset, or
// it will cut the retry sequence short.
//
//	rt := httputil.NewTransport(httputil.TransportOptions{MinDelay: 2 * time.Second, Timeout: 30 * time.Second})
//	client := &http.Client{Transport: rt}
package httputil
