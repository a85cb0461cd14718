package identity

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mcoot/playeraccounts/internal/model"
	"github.com/mcoot/playeraccounts/internal/services/outbound"
)

// PlariumConfig holds the Plarium Play integration settings
type PlariumConfig struct {
	TokenURL    string
	AuthURL     string
	GameID      string
	Secret      string
	PrivateKey  string
	ClientID    int
	RedirectURI string
}

// PlariumValidator exchanges Plarium authorization codes and verifies auth tokens
type PlariumValidator struct {
	client *outbound.Client
	cfg    PlariumConfig
}

// NewPlariumValidator creates a PlariumValidator
func NewPlariumValidator(cfg PlariumConfig, client *outbound.Client) *PlariumValidator {
	return &PlariumValidator{client: client, cfg: cfg}
}

type plariumCodeRequest struct {
	ClientID    int    `json:"clientId"`
	Code        string `json:"code"`
	RedirectURI string `json:"redirectUri"`
	PrivateKey  string `json:"privateKey"`
	GrantType   string `json:"grantType"`
}

type plariumAuthResponse struct {
	PlariumID string `json:"plid"`
	Login     string `json:"login"`
}

// Validate resolves a Plarium identity. When code is set it is exchanged for
// an auth token first; otherwise token is verified directly.
func (p *PlariumValidator) Validate(ctx context.Context, code, token string) (*model.PlariumAccount, error) {
	if code != "" {
		exchanged, err := p.exchangeCode(ctx, code)
		if err != nil {
			return nil, &model.ValidationError{Provider: model.ProviderPlarium, Err: err}
		}
		token = exchanged
	}
	if token == "" {
		return nil, &model.ValidationError{Provider: model.ProviderPlarium, Err: fmt.Errorf("no code or token supplied")}
	}

	var resp plariumAuthResponse
	err := p.client.Do(ctx, outbound.Request{
		Method:  http.MethodPost,
		URL:     p.cfg.AuthURL,
		Headers: p.headers(),
		Body:    map[string]string{"auth_token": token},
	}, &resp)
	if err != nil {
		return nil, &model.ValidationError{Provider: model.ProviderPlarium, Err: err}
	}
	if resp.PlariumID == "" {
		return nil, &model.ValidationError{Provider: model.ProviderPlarium, Err: fmt.Errorf("response missing plid")}
	}

	login := strings.ToLower(strings.TrimSpace(resp.Login))
	return &model.PlariumAccount{
		ID:    resp.PlariumID,
		Email: login,
		Login: login,
	}, nil
}

func (p *PlariumValidator) exchangeCode(ctx context.Context, code string) (string, error) {
	var raw []byte
	err := p.client.Do(ctx, outbound.Request{
		Method:  http.MethodPost,
		URL:     p.cfg.TokenURL,
		Headers: p.headers(),
		Body: plariumCodeRequest{
			ClientID:    p.cfg.ClientID,
			Code:        code,
			RedirectURI: p.cfg.RedirectURI,
			PrivateKey:  p.cfg.PrivateKey,
			GrantType:   "authorization_code",
		},
	}, &raw)
	if err != nil {
		return "", fmt.Errorf("failed to fetch Plarium token: %w", err)
	}
	token := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if token == "" {
		return "", fmt.Errorf("empty Plarium token")
	}
	return token, nil
}

func (p *PlariumValidator) headers() map[string]string {
	return map[string]string{
		"game_id":    p.cfg.GameID,
		"secret_key": p.cfg.Secret,
	}
}
