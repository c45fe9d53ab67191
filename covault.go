// Package covault - shared secret vaults with policy gated release
package covault

import (
	"context"
	"fmt"

	"github.com/alwitt/covault/db"
	"github.com/alwitt/covault/encryption"
	"github.com/alwitt/covault/store"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// VaultSystem entry point bundling the domain controllers of one deployment
type VaultSystem struct {
	// Persistence the persistence layer client
	Persistence db.Client
	// Cipher the content cipher engine
	Cipher encryption.CipherEngine
	// Vaults vault lifecycle operations
	Vaults store.VaultManager
	// Memberships membership lifecycle operations
	Memberships store.MembershipManager
	// Invites invite lifecycle operations
	Invites store.InviteManager
	// Items secret item operations
	Items store.ItemManager
	// Accounts account level operations
	Accounts store.AccountManager
}

/*
NewVaultSystem initialize a vault system instance.

Each instance is backed by a SQL database; two instances using the same database are
essentially copies of each other. The server secret must be the same across all of
them, and is fingerprinted against the database on startup to catch a mismatch
before any content key is derived from the wrong secret.

	@param ctx context.Context - execution context
	@param dbDialector gorm.Dialector - GORM dialector
	@param dbLogLevel logger.LogLevel - SQL log level
	@param serverSecret []byte - the server side key derivation secret
	@param notifier store.Notifier - notification delivery
	@param identity store.Identity - identity resolution
	@param storage store.Storage - document blob storage. Optional.
	@returns new system instance
*/
func NewVaultSystem(
	ctx context.Context,
	dbDialector gorm.Dialector,
	dbLogLevel logger.LogLevel,
	serverSecret []byte,
	notifier store.Notifier,
	identity store.Identity,
	storage store.Storage,
) (*VaultSystem, error) {
	// Prepare persistence
	persistence, err := db.NewConnection(dbDialector, dbLogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialized persistence client [%w]", err)
	}

	// Prepare cipher engine
	cipher, err := encryption.NewCipherEngine(ctx, encryption.CipherEngineParams{
		ServerSecret: serverSecret,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialized cipher engine [%w]", err)
	}

	// Verify the server secret against the deployment before serving anything
	if err := persistence.UseDatabaseInTransaction(
		ctx, func(dbCtx context.Context, dbClient db.Database) error {
			if err := dbClient.MarkSystemInitializing(dbCtx); err != nil {
				return err
			}
			if err := dbClient.SetServerSecretFingerprint(
				dbCtx, cipher.SecretFingerprint(),
			); err != nil {
				return err
			}
			return dbClient.MarkSystemInitialized(dbCtx)
		},
	); err != nil {
		return nil, fmt.Errorf("system initialization failed [%w]", err)
	}

	vaults, err := store.NewVaultManager(ctx, persistence, cipher, notifier, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to initialized vault manager [%w]", err)
	}
	memberships, err := store.NewMembershipManager(ctx, persistence, cipher, notifier, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to initialized membership manager [%w]", err)
	}
	invites, err := store.NewInviteManager(ctx, persistence, cipher, notifier, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to initialized invite manager [%w]", err)
	}
	items, err := store.NewItemManager(ctx, persistence, cipher, notifier, identity, storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialized item manager [%w]", err)
	}
	accounts, err := store.NewAccountManager(ctx, persistence, cipher, notifier, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to initialized account manager [%w]", err)
	}

	return &VaultSystem{
		Persistence: persistence,
		Cipher:      cipher,
		Vaults:      vaults,
		Memberships: memberships,
		Invites:     invites,
		Items:       items,
		Accounts:    accounts,
	}, nil
}
