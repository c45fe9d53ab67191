// Package store - vault domain controllers
package store

import (
	"context"
	"errors"
	"time"

	"github.com/alwitt/covault/models"
)

// Sentinel errors of the domain controllers.
//
// Callers match these with errors.Is; the wrapped message carries detail.
var (
	// ErrNotFound the entity is absent, or the caller has no visibility of it.
	// The two cases are indistinguishable on purpose.
	ErrNotFound = errors.New("not found")
	// ErrForbidden the caller lacks the required privilege or permission
	ErrForbidden = errors.New("forbidden")
	// ErrNotAccessible the vault's content is gated by its release policy
	ErrNotAccessible = errors.New("vault content not accessible")
	// ErrRestoreWindowClosed the soft-delete restore window has passed
	ErrRestoreWindowClosed = errors.New("restore window closed")
	// ErrInvalidPolicyConfiguration the release policy's date fields do not
	// agree with its type
	ErrInvalidPolicyConfiguration = errors.New("invalid release policy configuration")
)

// Notification kinds passed to the Notifier collaborator
const (
	NotifyKindVaultReleased  = "vault-released"
	NotifyKindInviteSent     = "invite-sent"
	NotifyKindInviteCancel   = "invite-cancelled"
	NotifyKindInviteExpired  = "invite-expired"
	NotifyKindInviteAccepted = "invite-accepted"
	NotifyKindItemChanged    = "item-changed"
	NotifyKindAccountPurged  = "account-purged"
)

// Storage external object storage for document blobs
type Storage interface {
	/*
		Put store a blob

			@param ctx context.Context - execution context
			@param objectKey string - target object key
			@param data []byte - the blob
			@returns the stored object key
	*/
	Put(ctx context.Context, objectKey string, data []byte) (string, error)

	/*
		Delete remove a blob

			@param ctx context.Context - execution context
			@param objectKey string - target object key
			@returns whether the blob existed
	*/
	Delete(ctx context.Context, objectKey string) (bool, error)

	/*
		PresignedURL produce a time-limited download URL for a blob

			@param ctx context.Context - execution context
			@param objectKey string - target object key
			@param ttl time.Duration - URL validity window
			@returns the URL
	*/
	PresignedURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error)
}

// Notifier fire-and-forget user notification delivery.
//
// Failures are logged and swallowed; they never roll back the state change.
type Notifier interface {
	/*
		Send deliver one notification

			@param ctx context.Context - execution context
			@param userID string - the target user
			@param kind string - notification kind
			@param metadata map[string]string - template context
	*/
	Send(ctx context.Context, userID string, kind string, metadata map[string]string) error
}

// Identity caller identity resolution. The system never authenticates; it
// only consumes resolved user records.
type Identity interface {
	/*
		ResolveUserByID fetch a user record by ID

			@param ctx context.Context - execution context
			@param id string - the user ID
			@returns the user record
	*/
	ResolveUserByID(ctx context.Context, id string) (models.User, error)

	/*
		ResolveUserByEmail fetch a user record by email

			@param ctx context.Context - execution context
			@param email string - the user email
			@returns the user record
	*/
	ResolveUserByEmail(ctx context.Context, email string) (models.User, error)
}
