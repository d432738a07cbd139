// Package auth is the simple credential service: signup, login, and the
// bearer-token sessions every other layer validates against. Tokens are
// opaque and stored server-side with an expiry; there is nothing to decode
// client-side.
package auth
