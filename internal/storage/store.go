// Package storage holds the Record Store contract and its in-memory
// implementation. Every other component reads and mutates applications
// through this contract.
package storage

import (
	"context"

	"github.com/dharsanguruparan/RestorePortal/internal/model"
)

// Store is the single source of truth for applications.
//
// Reads return snapshots. Mutations go through Update, which runs the
// callback while holding the record exclusively, so read-then-write sequences
// such as credential issuance and status review are atomic per record.
type Store interface {
	// ReserveID hands out the next id from the store-owned counter. Reserved
	// ids that are never used leave a gap.
	ReserveID(ctx context.Context) (int64, error)
	// Create inserts draft and returns its id. A zero draft.ID is assigned
	// from the counter. The email uniqueness check and the insert are atomic.
	Create(ctx context.Context, draft *model.Application) (int64, error)
	Get(ctx context.Context, id int64) (*model.Application, error)
	FindByEmail(ctx context.Context, email string) (*model.Application, error)
	// FindByCredentials returns the application whose professional id and
	// session token both match.
	FindByCredentials(ctx context.Context, professionalID, sessionToken string) (*model.Application, error)
	List(ctx context.Context) ([]*model.Application, error)
	ListByStatus(ctx context.Context, status model.Status) ([]*model.Application, error)
	// Update applies fn to the stored record under its lock and returns the
	// result. The id and email of a record cannot be changed.
	Update(ctx context.Context, id int64, fn func(*model.Application) error) (*model.Application, error)
}
