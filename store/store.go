// Package store reads voter records and writes back contact numbers.
package store

import (
	"context"
	"errors"

	"github.com/nixxel-company-limited/booth-printer/models"
)

var ErrNotFound = errors.New("voter not found")

// Store is the voter document store.
type Store interface {
	// Voter returns the voter with the given document id.
	Voter(ctx context.Context, id string) (models.Voter, error)

	// Family returns the linked members of id in link order. Links to
	// missing voters are skipped.
	Family(ctx context.Context, id string) ([]models.Voter, error)

	// SetContact updates one contact field, leaving the rest of the
	// document untouched.
	SetContact(ctx context.Context, id string, field models.ContactField, value string) error
}
