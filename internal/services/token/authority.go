package token

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mcoot/playeraccounts/internal/model"
	"github.com/mcoot/playeraccounts/internal/services/outbound"
)

const origin = "player-account-service"

// AuthorityConfig locates the platform token service
type AuthorityConfig struct {
	BaseURL    string
	AdminToken string
}

// AuthorityClient requests tokens from the platform token service
type AuthorityClient struct {
	client *outbound.Client
	cfg    AuthorityConfig
}

var _ Issuer = (*AuthorityClient)(nil)

// NewAuthorityClient creates an AuthorityClient
func NewAuthorityClient(client *outbound.Client, cfg AuthorityConfig) *AuthorityClient {
	return &AuthorityClient{client: client, cfg: cfg}
}

type generateRequest struct {
	AccountID     string   `json:"aid"`
	Screenname    string   `json:"screenname"`
	Discriminator int      `json:"discriminator"`
	Email         string   `json:"email,omitempty"`
	IPAddress     string   `json:"ipAddress,omitempty"`
	Audiences     []string `json:"audiences,omitempty"`
	Origin        string   `json:"origin"`
}

type generateResponse struct {
	Authorization struct {
		Token string `json:"token"`
	} `json:"authorization"`
}

// Issue asks the authority for a token. A 403 means the account is banned;
// anything else that fails is reported as the authority being unavailable.
func (a *AuthorityClient) Issue(ctx context.Context, req Request) (string, error) {
	if req.AccountID == "" || req.Discriminator < 0 {
		return "", fmt.Errorf("cannot issue token for %q#%d: %w", req.AccountID, req.Discriminator, model.ErrInvalidIdentity)
	}

	var resp generateResponse
	err := a.client.Do(ctx, outbound.Request{
		Method:  http.MethodPost,
		URL:     strings.TrimRight(a.cfg.BaseURL, "/") + "/secured/token/generate",
		Headers: map[string]string{"Authorization": "Bearer " + a.cfg.AdminToken},
		Body: generateRequest{
			AccountID:     string(req.AccountID),
			Screenname:    req.Screenname,
			Discriminator: req.Discriminator,
			Email:         req.Email,
			IPAddress:     req.IPAddress,
			Audiences:     req.Audiences,
			Origin:        origin,
		},
	}, &resp)
	if err != nil {
		var statusErr *outbound.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusForbidden {
			return "", fmt.Errorf("token authority refused %s: %w", req.AccountID, model.ErrAccountBanned)
		}
		return "", fmt.Errorf("%w: %v", model.ErrTokenAuthorityUnavailable, err)
	}
	if resp.Authorization.Token == "" {
		return "", fmt.Errorf("%w: empty token in response", model.ErrTokenAuthorityUnavailable)
	}
	return resp.Authorization.Token, nil
}
