// Package httpapi exposes the sync backend over REST. Every response body is
// a wire.Envelope; authenticated routes expect a bearer access token.
package httpapi
