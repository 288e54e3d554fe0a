// Package auth issues and validates JWT access tokens, hashes passwords with
// bcrypt and tracks revoked tokens.
package auth
