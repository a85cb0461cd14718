package notify

import (
	"context"
	"net/http"
	"strings"

	"github.com/mcoot/playeraccounts/internal/services/outbound"
)

// HTTPConfig locates the platform mail service
type HTTPConfig struct {
	BaseURL    string
	AdminToken string
}

// HTTPSender posts messages to /dmz/player/account/{kind}
type HTTPSender struct {
	client *outbound.Client
	cfg    HTTPConfig
}

// NewHTTPSender creates an HTTPSender
func NewHTTPSender(client *outbound.Client, cfg HTTPConfig) *HTTPSender {
	return &HTTPSender{client: client, cfg: cfg}
}

func (h *HTTPSender) Send(ctx context.Context, msg Message) error {
	return h.client.Do(ctx, outbound.Request{
		Method:  http.MethodPost,
		URL:     strings.TrimRight(h.cfg.BaseURL, "/") + "/dmz/player/account/" + string(msg.Kind),
		Headers: map[string]string{"Authorization": "Bearer " + h.cfg.AdminToken},
		Body:    msg,
	}, nil)
}
