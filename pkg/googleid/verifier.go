package googleid

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/idtoken"
)

// Identity is a verified Google identity: the subject id vouched for by
// Google plus the profile fields needed to provision a local account.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// Verifier exchanges a raw Google ID token for a verified Identity.
// The OAuth handshake itself happens on the client; the backend only
// validates the resulting token.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Identity, error)
}

type verifier struct {
	audience string
}

// New returns a Verifier that validates tokens against Google's public keys
// and requires the configured OAuth client id as audience.
func New(audience string) Verifier {
	return &verifier{audience: audience}
}

func (v *verifier) Verify(ctx context.Context, rawToken string) (*Identity, error) {
	payload, err := idtoken.Validate(ctx, rawToken, v.audience)
	if err != nil {
		return nil, fmt.Errorf("validate id token: %w", err)
	}
	sub, _ := payload.Claims["sub"].(string)
	if sub == "" {
		return nil, errors.New("id token missing subject")
	}
	email, _ := payload.Claims["email"].(string)
	name, _ := payload.Claims["name"].(string)
	return &Identity{Subject: sub, Email: email, Name: name}, nil
}
