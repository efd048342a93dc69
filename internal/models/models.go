// Package models defines the domain entities shared across the application:
// users, links, the feed projection and the error taxonomy surfaced by
// storage and resolvers.
package models

import (
	"errors"
	"time"
)

// User represents a registered account. PasswordHash holds the bcrypt hash
// and is never exposed through the API.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// Link is a posted resource. PostedByID is nil for links without an owner.
type Link struct {
	ID          int64     `json:"id"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	PostedByID  *int64    `json:"posted_by_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// SortDirection is a feed ordering direction, matching the GraphQL Sort enum.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// LinkOrderField names a sortable link column.
type LinkOrderField string

const (
	OrderByDescription LinkOrderField = "description"
	OrderByURL         LinkOrderField = "url"
	OrderByCreatedAt   LinkOrderField = "createdAt"
)

// LinkOrder is a single-field sort specification.
type LinkOrder struct {
	Field     LinkOrderField
	Direction SortDirection
}

// LinkFilter narrows and pages a feed listing. Contains matches links whose
// description or url contains the substring. A nil OrderBy leaves the order
// store-defined.
type LinkFilter struct {
	Contains *string
	Skip     *int32
	Take     *int32
	OrderBy  *LinkOrder
}

// Feed is the transient projection returned by a feed query: one page of
// links plus the total number of matching links regardless of paging.
type Feed struct {
	Links []Link
	Count int32
}

const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeFile
	StorageTypeMemory
)

var (
	// ErrUnauthenticated is returned by operations that require a current user.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidCredentials is returned by login on a password mismatch.
	ErrInvalidCredentials = errors.New("invalid password")

	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("no such user found")

	// ErrEmailTaken is returned when a signup reuses an existing email.
	ErrEmailTaken = errors.New("email is already taken")

	// ErrStoreUnavailable wraps storage failures that are not constraint
	// violations.
	ErrStoreUnavailable = errors.New("storage unavailable")

	// ErrInvalidToken is returned for malformed, expired or tampered tokens.
	ErrInvalidToken = errors.New("invalid token")
)
