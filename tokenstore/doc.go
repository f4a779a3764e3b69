// Package tokenstore provides persistent reqkit.TokenStore implementations.
//
// Every store keeps the token under reqkit.DefaultTokenKey (optionally
// prefixed) and reports a missing token as "" with a nil error.
package tokenstore
