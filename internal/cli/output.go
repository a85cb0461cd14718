package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to stdout
func NewOutput(format string) *Output {
	return &Output{format: format, w: os.Stdout}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Player:
		o.printPlayer(v)
	case LoginResult:
		o.printLoginResult(v)
	case LoginConflict:
		o.printLoginConflict(v)
	case Redirect:
		fmt.Fprintf(o.w, "Redirect: %s\n", v.URL)
	case ScreennameResult:
		fmt.Fprintf(o.w, "Screenname: %s (%d records)\n", v.Screenname, v.Affected)
	case EraseResult:
		o.printPlayer(v.Player)
		fmt.Fprintf(o.w, "Lockout logs scrubbed: %d\n", v.LockoutLogsScrubbed)
	case HealthResult:
		fmt.Fprintf(o.w, "Status: %s\n", v.Status)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Player response type (matches API)
type Player struct {
	ID            string   `json:"id"`
	ParentID      string   `json:"parent_id,omitempty"`
	Screenname    string   `json:"screenname,omitempty"`
	Discriminator *int     `json:"discriminator,omitempty"`
	Device        *Device  `json:"device,omitempty"`
	Google        *SSO     `json:"google,omitempty"`
	Apple         *SSO     `json:"apple,omitempty"`
	Plarium       *SSO     `json:"plarium,omitempty"`
	Rumble        *Rumble  `json:"rumble,omitempty"`
	Children      []string `json:"children,omitempty"`
	SessionCount  int64    `json:"session_count"`
	Token         string   `json:"token,omitempty"`
}

// Device response type
type Device struct {
	InstallID  string `json:"install_id"`
	Type       string `json:"type,omitempty"`
	PrivateKey string `json:"private_key,omitempty"`
}

// SSO is the subset of a Google, Apple or Plarium identity the CLI shows
type SSO struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Rumble response type
type Rumble struct {
	Email  string `json:"email"`
	Status string `json:"status"`
}

// LoginResult response type
type LoginResult struct {
	RequestID string `json:"request_id,omitempty"`
	Player    Player `json:"player"`
}

// LoginConflict is the body of a login that needs verification or matched several accounts
type LoginConflict struct {
	ErrorCode string   `json:"error_code"`
	RequestID string   `json:"request_id,omitempty"`
	Player    Player   `json:"player"`
	Rumble    *Rumble  `json:"rumble,omitempty"`
	Conflicts []Player `json:"conflicts,omitempty"`
}

// Redirect response type
type Redirect struct {
	URL string `json:"url"`
}

// ScreennameResult response type
type ScreennameResult struct {
	Screenname string `json:"screenname"`
	Affected   int64  `json:"affected"`
}

// EraseResult response type
type EraseResult struct {
	Player              Player `json:"player"`
	LockoutLogsScrubbed int64  `json:"lockout_logs_scrubbed"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

// DisplayName renders the screenname with its discriminator
func (p Player) DisplayName() string {
	if p.Discriminator == nil {
		return p.Screenname
	}
	return fmt.Sprintf("%s#%04d", p.Screenname, *p.Discriminator)
}

func (o *Output) printPlayer(p Player) {
	fmt.Fprintf(o.w, "Player: %s (%s)\n", p.DisplayName(), p.ID)
	if p.ParentID != "" {
		fmt.Fprintf(o.w, "Parent: %s\n", p.ParentID)
	}
	if p.Device != nil {
		fmt.Fprintf(o.w, "Device: %s\n", p.Device.InstallID)
	}

	var linked []string
	if p.Apple != nil {
		linked = append(linked, "apple")
	}
	if p.Google != nil {
		linked = append(linked, "google")
	}
	if p.Plarium != nil {
		linked = append(linked, "plarium")
	}
	if len(linked) > 0 {
		fmt.Fprintf(o.w, "Linked: %s\n", strings.Join(linked, ", "))
	}
	if p.Rumble != nil {
		fmt.Fprintf(o.w, "Email: %s [%s]\n", p.Rumble.Email, p.Rumble.Status)
	}
	if len(p.Children) > 0 {
		fmt.Fprintf(o.w, "Children: %s\n", strings.Join(p.Children, ", "))
	}
	if p.Token != "" {
		fmt.Fprintf(o.w, "Token: %s\n", p.Token)
	}
}

func (o *Output) printLoginResult(r LoginResult) {
	o.printPlayer(r.Player)
	if r.RequestID != "" {
		fmt.Fprintf(o.w, "Request: %s\n", r.RequestID)
	}
}

func (o *Output) printLoginConflict(c LoginConflict) {
	switch c.ErrorCode {
	case "verificationRequired":
		fmt.Fprintln(o.w, "Verification required: a code was emailed, confirm it with 'playerctl account two-factor --code ...'")
	default:
		fmt.Fprintf(o.w, "Login matched several accounts (%s)\n", c.ErrorCode)
	}
	o.printPlayer(c.Player)
	for _, other := range c.Conflicts {
		fmt.Fprintf(o.w, "  - conflicts with %s (%s)\n", other.DisplayName(), other.ID)
	}
}
