package customer

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("customer not found")

type CustomerRepository interface {
	Save(ctx context.Context, customer *Customer) error

	// Upsert writes a customer row with an explicit ID, skipping rows
	// that already exist. Used by bulk import only.
	Upsert(ctx context.Context, customer *Customer) error

	FindByID(ctx context.Context, customerID int64) (*Customer, error)

	// ResetIDSequence moves the customer ID sequence past the current
	// maximum, so registrations after a bulk import do not collide.
	ResetIDSequence(ctx context.Context) error
}
