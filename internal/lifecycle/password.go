package lifecycle

import (
	"context"

	"github.com/dharsanguruparan/RestorePortal/internal/model"
)

// PasswordChecker decides whether password unlocks app. Login calls it after
// the email lookup succeeds and before credentials are issued.
type PasswordChecker interface {
	CheckPassword(ctx context.Context, app *model.Application, password string) error
}

// AcceptAnyPassword is the portal's current policy: any non-blank password
// is accepted for a registered email. Login is therefore only as strong as
// the secrecy of the email address.
type AcceptAnyPassword struct{}

// CheckPassword implements PasswordChecker.
func (AcceptAnyPassword) CheckPassword(context.Context, *model.Application, string) error {
	return nil
}
