package token

import (
	"context"

	"github.com/mcoot/playeraccounts/internal/model"
)

// Request carries the identity embedded in an issued token
type Request struct {
	AccountID     model.PlayerID
	Screenname    string
	Discriminator int
	Email         string
	IPAddress     string
	Audiences     []string
}

// Issuer mints bearer tokens for players
type Issuer interface {
	Issue(ctx context.Context, req Request) (string, error)
}

// RequestFor builds a token request from a player record
func RequestFor(p *model.Player, ip string, audiences []string) Request {
	req := Request{
		AccountID:     p.AccountID(),
		Screenname:    p.Screenname,
		Discriminator: p.DiscriminatorValue(),
		IPAddress:     ip,
		Audiences:     audiences,
	}
	switch {
	case p.Rumble != nil && p.Rumble.Status.IsConfirmed():
		req.Email = p.Rumble.Email
	case p.Google != nil:
		req.Email = p.Google.Email
	case p.Apple != nil:
		req.Email = p.Apple.Email
	case p.Plarium != nil:
		req.Email = p.Plarium.Email
	}
	return req
}
