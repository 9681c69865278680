package authkit

import (
	"github.com/golang-jwt/jwt/v5"
)

// DecodeIdentity extracts the Identity from an access token's claims without
// verifying the signature. Signature trust is delegated to the server: every
// authenticated call presents the token and the server rejects forgeries.
//
// Decoding never fails. Any malformation (bad base64, invalid JSON, missing
// segments) yields the zero Identity, so a corrupt persisted token bootstraps
// to the logged-out state instead of crashing. Callers treat an Identity with
// an empty ID as "not logged in".
func DecodeIdentity(token string) Identity {
	parser := jwt.NewParser()

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return Identity{}
	}

	var id Identity
	if v, ok := claims["sub"].(string); ok {
		id.ID = v
	}
	if v, ok := claims["email"].(string); ok {
		id.Email = v
	}
	if v, ok := claims["firstName"].(string); ok {
		id.FirstName = v
	}
	if v, ok := claims["lastName"].(string); ok {
		id.LastName = v
	}
	if v, ok := claims["isTrainer"].(bool); ok {
		id.Trainer = v
	}
	return id
}
