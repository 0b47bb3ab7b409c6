package common

// TokenHeaderName is the HTTP header and gRPC metadata key carrying the
// session token.
const TokenHeaderName = "x-auth-token"

// DefaultBio is stored for accounts registered without a bio.
const DefaultBio = "404 BIO not found..."
