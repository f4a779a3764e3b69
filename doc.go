// Package reqkit is the request layer for a single JSON-over-HTTP backend
// that wraps every response in a {code, message, data} envelope.
//
// A Client adds, per logical request:
//
//   - De-duplication by supersession: a new identical request cancels the one
//     still in flight, whose caller gets a silent Superseded error
//   - A reference-counted loading indicator shown once for any number of
//     overlapping requests (toast, store, event or none)
//   - A fixed per-attempt timeout (15s by default)
//   - Bearer auth from a TokenStore, cleared with a redirect to login on 401
//   - Retry with a fixed backoff for every failure except supersession
//   - Classification into typed *ClientError values with translated messages,
//     surfaced once through a Notifier
//
// Typical usage:
//
//	client := reqkit.New(
//	    reqkit.WithBaseURL("https://api.example.com"),
//	    reqkit.WithTokenStore(tokenstore.NewFileStore("auth.json")),
//	    reqkit.WithMetrics(),
//	)
//	var user User
//	_, err := client.Get(ctx, "/users/1", reqkit.Params{"expand": "roles"}, &user,
//	    reqkit.WithRetry(2))
//	if reqkit.IsSuperseded(err) {
//	    return // a newer identical request owns the result
//	}
//
// Only code 200 in the envelope counts as success, whatever the HTTP status.
package reqkit
