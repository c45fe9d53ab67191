package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alwitt/covault/db"
	"github.com/alwitt/covault/encryption"
	"github.com/alwitt/covault/models"
	"github.com/alwitt/goutils"
	"github.com/apex/log"
	"gorm.io/gorm"
)

// managerCore shared plumbing of the domain controllers
type managerCore struct {
	goutils.Component

	persistence db.Client

	cipher encryption.CipherEngine

	notifier Notifier
	identity Identity

	nowFn func() time.Time
}

// newManagerCore assemble the shared controller plumbing
func newManagerCore(
	component string,
	persistence db.Client,
	cipher encryption.CipherEngine,
	notifier Notifier,
	identity Identity,
) managerCore {
	logTags := log.Fields{"module": "store", "component": component}

	return managerCore{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		persistence: persistence,
		cipher:      cipher,
		notifier:    notifier,
		identity:    identity,
		nowFn:       time.Now,
	}
}

// notify best-effort notification delivery. Failures are logged, never returned.
func (c *managerCore) notify(
	ctx context.Context, userID string, kind string, metadata map[string]string,
) {
	if c.notifier == nil || userID == "" {
		return
	}
	if err := c.notifier.Send(ctx, userID, kind, metadata); err != nil {
		log.WithError(err).
			WithFields(c.LogTags).
			WithField("notify-kind", kind).
			WithField("notify-user", userID).
			Error("Notification delivery failed")
	}
}

// vaultAccess the resolved caller standing within one vault
type vaultAccess struct {
	vault   models.Vault
	policy  models.VaultPolicy
	member  models.Member
	isOwner bool
}

// contentAccessible whether the caller may touch vault content right now
func (a vaultAccess) contentAccessible(now time.Time) bool {
	return a.isOwner || a.policy.Accessible(now)
}

/*
resolveVaultAccess resolve the caller's standing within a vault

The vault must exist and the caller must be an active member, otherwise
ErrNotFound. The release policy is lazily advanced here: a time-based policy
past its release date flips to Released, an expiry-based one past its expiry
flips to Expired, and the change is persisted before any gate is evaluated.
*/
func (c *managerCore) resolveVaultAccess(
	ctx context.Context, dbClient db.Database, callerID string, vaultID string,
) (vaultAccess, error) {
	now := c.nowFn()

	vault, err := dbClient.GetVault(ctx, vaultID)
	if err != nil {
		return vaultAccess{}, fmt.Errorf("vault %s [%w]", vaultID, ErrNotFound)
	}

	member, err := dbClient.GetMember(ctx, vaultID, callerID)
	if err != nil || member.Status != models.MemberStatusActive {
		return vaultAccess{}, fmt.Errorf(
			"caller %s has no standing in vault %s [%w]", callerID, vaultID, ErrNotFound,
		)
	}

	policy, err := dbClient.GetVaultPolicy(ctx, vaultID)
	if err != nil {
		return vaultAccess{}, fmt.Errorf(
			"release policy of vault %s missing [%w]", vaultID, err,
		)
	}

	// Lazy policy transition on the read path
	if policy.Advance(now) {
		released := policy.ReleaseStatus == models.ReleaseStatusReleased
		policy, err = dbClient.SaveAdvancedVaultPolicy(ctx, policy)
		if err != nil {
			return vaultAccess{}, fmt.Errorf(
				"failed to persist release policy advance of vault %s [%w]", vaultID, err,
			)
		}
		if released {
			c.notifyVaultReleased(ctx, dbClient, vault)
		}
	}

	return vaultAccess{
		vault:   vault,
		policy:  policy,
		member:  member,
		isOwner: vault.OwnerID == callerID,
	}, nil
}

// notifyVaultReleased tell every active member the vault content opened up
func (c *managerCore) notifyVaultReleased(
	ctx context.Context, dbClient db.Database, vault models.Vault,
) {
	members, err := dbClient.ListVaultMembers(ctx, vault.ID, db.MemberQueryFilter{
		TargetStatuses: []models.MemberStatusENUMType{models.MemberStatusActive},
	})
	if err != nil {
		log.WithError(err).
			WithFields(c.LogTags).
			WithField("vault", vault.ID).
			Error("Unable to list members for release notification")
		return
	}
	for _, member := range members {
		c.notify(ctx, member.UserID, NotifyKindVaultReleased, map[string]string{
			"vault_id": vault.ID, "vault_name": vault.Name,
		})
	}
}

/*
effectivePermission the caller's per-item permission

The vault owner always holds Edit. Everyone else holds exactly what their
visibility row says; no row means no access at all.
*/
func (c *managerCore) effectivePermission(
	ctx context.Context,
	dbClient db.Database,
	access vaultAccess,
	itemID string,
) (models.VisibilityPermissionENUMType, bool, error) {
	if access.isOwner {
		return models.VisibilityPermissionEdit, true, nil
	}

	visibility, err := dbClient.GetItemVisibility(ctx, itemID, access.member.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return visibility.Permission, true, nil
}
