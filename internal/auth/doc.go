// Package auth provides token-based authentication for the API surface.
//
// The engine treats identity as an external collaborator: all it needs is
// a "current owner identifier, or none" per request. Tokens are HS256 JWTs
// whose sub claim carries the owner id; the HTTP middleware verifies the
// bearer token and attaches the owner to the request context, where
// handlers read it with OwnerFromContext.
//
// Account management, sign-up, and credential storage are out of scope —
// tokens are minted out of band (see the gateway's token subcommand).
package auth
