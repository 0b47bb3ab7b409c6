// Package accounts stores registered accounts. Implementations must be
// safe for concurrent use and must enforce email uniqueness on Create.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository is the account store used by the account service. Emails are
// expected in normalized (trimmed, lower-case) form.
//
// Lookups, DeleteByID and Update return common.ErrorNotFound for unknown
// accounts; Create returns common.ErrorConflict when the email is taken.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	DeleteByID(ctx context.Context, id string) (*models.Account, error)
	Update(ctx context.Context, id string, update models.ProfileUpdate) (*models.Account, error)
}
