package response

import (
	"github.com/mcoot/playeraccounts/internal/model"
)

// Health is the health check body
type Health struct {
	Status string `json:"status"`
}

// Login is the response for a successful login
type Login struct {
	RequestID string        `json:"request_id,omitempty"`
	Player    *model.Player `json:"player"`
}

// LoginConflict is returned with a 400 when a login matched more than one account
type LoginConflict struct {
	ErrorCode string               `json:"error_code"`
	RequestID string               `json:"request_id,omitempty"`
	Player    *model.Player        `json:"player"`
	Rumble    *model.RumbleAccount `json:"rumble,omitempty"`
	Conflicts []*model.Player      `json:"conflicts,omitempty"`
}

// Redirect tells the web client where to go after an emailed link was followed
type Redirect struct {
	URL string `json:"url"`
}

// Screenname reports how many records a rename touched
type Screenname struct {
	Screenname string `json:"screenname"`
	Affected   int64  `json:"affected"`
}

// Erase is the response for a personal data erasure
type Erase struct {
	Player              *model.Player `json:"player"`
	LockoutLogsScrubbed int64         `json:"lockout_logs_scrubbed"`
}
