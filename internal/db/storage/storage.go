// Package storage declares the data access facade implemented by the
// concrete storage backends.
package storage

import (
	"context"

	"linkfeed/internal/models"
)

// Storage is the typed access layer for users and links. All operations are
// context-aware and return the sentinel errors from the models package:
// models.ErrNotFound for absent entities, models.ErrEmailTaken for duplicate
// emails and models.ErrStoreUnavailable for backend failures.
type Storage interface {
	CreateUser(ctx context.Context, name, email, passwordHash string) (*models.User, error)

	FindUserByID(ctx context.Context, id int64) (*models.User, error)

	FindUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateLink(ctx context.Context, description, url string, postedByID *int64) (*models.Link, error)

	// FindLinks returns one page of links matching the filter plus the total
	// number of matches regardless of paging. An out-of-range skip yields an
	// empty page, not an error.
	FindLinks(ctx context.Context, filter models.LinkFilter) ([]models.Link, int32, error)

	FindLinksByUser(ctx context.Context, userID int64) ([]models.Link, error)

	Ping(ctx context.Context) error

	Close() error
}
