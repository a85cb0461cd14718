package confirmation

import (
	"fmt"

	"github.com/mcoot/playeraccounts/internal/model"
)

// Diagnosis explains why an email login or code check failed.
// It is one of NotLinked, NotConfirmed, CodeExpired, CodeInvalid,
// PasswordInvalid or DuplicateRecords.
type Diagnosis interface {
	// Err converts the diagnosis into the matching domain error
	Err() error
	diagnosis()
}

// NotLinked means no Rumble account uses the email
type NotLinked struct{ Email string }

// NotConfirmed means an account exists but its confirmation code is still outstanding
type NotConfirmed struct{ Email string }

// CodeExpired means the relevant code has lapsed
type CodeExpired struct{ Email string }

// CodeInvalid means the supplied code matched nothing
type CodeInvalid struct{ Email string }

// PasswordInvalid means the account exists and is confirmed, so the hash was wrong
type PasswordInvalid struct{ Email string }

// DuplicateRecords means more than one confirmed account shares the email
type DuplicateRecords struct {
	Email string
	Count int
}

func (NotLinked) diagnosis()        {}
func (NotConfirmed) diagnosis()     {}
func (CodeExpired) diagnosis()      {}
func (CodeInvalid) diagnosis()      {}
func (PasswordInvalid) diagnosis()  {}
func (DuplicateRecords) diagnosis() {}

func (d NotLinked) Err() error {
	return &model.UnlinkedError{Provider: model.ProviderRumble}
}

func (d NotConfirmed) Err() error {
	return fmt.Errorf("%s: %w", d.Email, model.ErrNotConfirmed)
}

func (d CodeExpired) Err() error {
	return fmt.Errorf("%s: %w", d.Email, model.ErrCodeExpired)
}

func (d CodeInvalid) Err() error {
	return fmt.Errorf("%s: %w", d.Email, model.ErrCodeInvalid)
}

func (d PasswordInvalid) Err() error {
	return fmt.Errorf("%s: %w", d.Email, model.ErrPasswordInvalid)
}

func (d DuplicateRecords) Err() error {
	return &model.RecordsFoundError{
		Expected: 1,
		Found:    d.Count,
		Reason:   "confirmed rumble accounts share " + d.Email,
	}
}
