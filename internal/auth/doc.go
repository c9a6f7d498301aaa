// Package auth implements the request-authentication layer of the gateway:
// the wire error taxonomy, the response envelope, the strategy interface
// with its prefix routing table, and the dispatch filter that ties them to
// the HTTP server.
package auth
