// Package accounts stores the tracker's registered users. Passwords are kept
// as argon2id hashes with a per-account salt.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/peerchat/internal/models"
)

type Repository interface {
	// Create stores a new account. It returns common.ErrorAlreadyExists when
	// the username is taken.
	Create(ctx context.Context, account *models.Account) error
	// GetByUsername returns common.ErrorNotFound for unknown usernames.
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
}
