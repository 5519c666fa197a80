package contract

import (
	"context"

	"github.com/google/uuid"
)

// Store persists Contract rows. Implemented by storage/postgres; schema DDL
// is out of scope, only this narrow interface is.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*Contract, error)
	Save(ctx context.Context, c *Contract) error
	// NextContractIndex atomically allocates the next leaf index shared by
	// borrower, lender and hub key derivation for a new contract. Single
	// writer under transaction; callers see only the post-increment value.
	NextContractIndex(ctx context.Context) (uint32, error)
	// ListCheckable returns every contract whose status is in the
	// undercollateralization-checkable set, for the liquidation monitor's
	// periodic cache refresh.
	ListCheckable(ctx context.Context) ([]*Contract, error)
}
