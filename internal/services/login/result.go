package login

import "github.com/mcoot/playeraccounts/internal/model"

// Kind is the outcome of a login
type Kind string

const (
	KindSuccess           Kind = "success"
	KindTwoFactorRequired Kind = "verificationRequired"
	KindAccountConflict   Kind = "accountConflict"
	KindFailed            Kind = "failed"
	KindMaintenance       Kind = "maintenance"
)

// Result is what Login hands back. Player and Conflicts are pruned.
type Result struct {
	Kind   Kind
	Player *model.Player
	// Rumble is the account that must be verified, for KindTwoFactorRequired
	Rumble *model.RumbleAccount
	// Conflicts are the other accounts matched, each with its own token
	Conflicts []*model.Player
	// Diagnosis is set for KindFailed and KindMaintenance
	Diagnosis *model.LoginDiagnosis
	Err       error
}

// OK reports whether the login produced a usable session
func (r *Result) OK() bool {
	return r.Kind == KindSuccess
}
