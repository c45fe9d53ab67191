package store

import (
	"context"
	"fmt"
	"time"

	"github.com/alwitt/covault/db"
	"github.com/alwitt/covault/encryption"
	"github.com/alwitt/covault/models"
)

// DefaultInviteTTL how long a freshly issued or resent invite stays acceptable
const DefaultInviteTTL = time.Hour * 24 * 7

/*
InviteManager vault invitation workflow: issue, resend, cancel, accept.

The bearer token is returned to the caller exactly once per issue or resend;
only its hash is persisted.
*/
type InviteManager interface {
	/*
		CreateInvite issue a new invite. Owner only; the offered role is never
		Owner.

			@param ctx context.Context - execution context
			@param callerID string - the requesting user
			@param vaultID string - vault ID
			@param inviteeEmail string - the email the invite is issued against
			@param privilege models.MemberPrivilegeENUMType - the role offered
			@param activeDBClient Database - existing database transaction
			@returns the invite and the bearer token
	*/
	CreateInvite(
		ctx context.Context,
		callerID string,
		vaultID string,
		inviteeEmail string,
		privilege models.MemberPrivilegeENUMType,
		activeDBClient db.Database,
	) (models.Invite, string, error)

	/*
		ResendInvite rotate the bearer token and expiry of an open invite.
		Owner only.

			@param ctx context.Context - execution context
			@param callerID string - the requesting user
			@param inviteID string - invite entry ID
			@param activeDBClient Database - existing database transaction
			@returns the invite and the fresh bearer token
	*/
	ResendInvite(
		ctx context.Context, callerID string, inviteID string, activeDBClient db.Database,
	) (models.Invite, string, error)

	/*
		CancelInvite cancel an open invite. Owner only. Terminal.

			@param ctx context.Context - execution context
			@param callerID string - the requesting user
			@param inviteID string - invite entry ID
			@param activeDBClient Database - existing database transaction
			@returns updated invite entry
	*/
	CancelInvite(
		ctx context.Context, callerID string, inviteID string, activeDBClient db.Database,
	) (models.Invite, error)

	/*
		ListInvites list invites of a vault. Owner only.

			@param ctx context.Context - execution context
			@param callerID string - the requesting user
			@param vaultID string - vault ID
			@param filters db.InviteQueryFilter - entry listing filter
			@param activeDBClient Database - existing database transaction
			@returns list of invites
	*/
	ListInvites(
		ctx context.Context,
		callerID string,
		vaultID string,
		filters db.InviteQueryFilter,
		activeDBClient db.Database,
	) ([]models.Invite, error)

	/*
		AcceptInvite accept an invite with its bearer token

		The caller's resolved email must match the email the invite was issued
		against. Accepting twice is a no-op returning the existing membership.
		A previously left or removed member is reactivated on their original
		member row rather than duplicated, and View visibility is seeded for
		every active item of the vault.

			@param ctx context.Context - execution context
			@param callerID string - the accepting user
			@param token string - the bearer token
			@param activeDBClient Database - existing database transaction
			@returns the resulting membership
	*/
	AcceptInvite(
		ctx context.Context, callerID string, token string, activeDBClient db.Database,
	) (models.Member, error)
}

// inviteManager implements InviteManager
type inviteManager struct {
	managerCore
}

/*
NewInviteManager define new invite manager

	@param ctx context.Context - execution context
	@param persistence db.Client - persistence layer client
	@param cipher encryption.CipherEngine - cipher engine
	@param notifier Notifier - notification delivery
	@param identity Identity - identity resolution
	@returns manager instance
*/
func NewInviteManager(
	_ context.Context,
	persistence db.Client,
	cipher encryption.CipherEngine,
	notifier Notifier,
	identity Identity,
) (InviteManager, error) {
	return &inviteManager{
		managerCore: newManagerCore("invite-manager", persistence, cipher, notifier, identity),
	}, nil
}

func (m *inviteManager) CreateInvite(
	ctx context.Context,
	callerID string,
	vaultID string,
	inviteeEmail string,
	privilege models.MemberPrivilegeENUMType,
	activeDBClient db.Database,
) (models.Invite, string, error) {
	var invite models.Invite
	var token string

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, m.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			access, err := m.resolveVaultAccess(dbCtx, dbClient, callerID, vaultID)
			if err != nil {
				return err
			}
			if !access.isOwner {
				return fmt.Errorf("only the vault owner may invite [%w]", ErrForbidden)
			}
			if privilege == models.MemberPrivilegeOwner {
				return fmt.Errorf("an invite can not offer ownership [%w]", ErrForbidden)
			}

			var tokenHash string
			token, tokenHash, err = m.cipher.NewInviteToken(dbCtx)
			if err != nil {
				return fmt.Errorf("failed to generate invite token [%w]", err)
			}

			invite, err = dbClient.DefineNewInvite(
				dbCtx, vaultID, callerID, inviteeEmail, privilege, tokenHash,
				m.nowFn().Add(DefaultInviteTTL),
			)
			if err != nil {
				return err
			}

			invite, err = dbClient.MarkInviteSent(dbCtx, invite.ID)
			if err != nil {
				return err
			}

			// The invitee may not have an account yet
			if invitee, lookupErr := m.identity.ResolveUserByEmail(
				dbCtx, inviteeEmail,
			); lookupErr == nil {
				m.notify(dbCtx, invitee.ID, NotifyKindInviteSent, map[string]string{
					"vault_id": vaultID, "vault_name": access.vault.Name,
				})
			}
			return nil
		},
	); dbErr != nil {
		return models.Invite{}, "", fmt.Errorf(
			"failed to issue invite for vault %s [%w]", vaultID, dbErr,
		)
	}

	return invite, token, nil
}

func (m *inviteManager) ResendInvite(
	ctx context.Context, callerID string, inviteID string, activeDBClient db.Database,
) (models.Invite, string, error) {
	var invite models.Invite
	var token string

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, m.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			existing, err := dbClient.GetInvite(dbCtx, inviteID)
			if err != nil {
				return fmt.Errorf("invite %s [%w]", inviteID, ErrNotFound)
			}

			access, err := m.resolveVaultAccess(dbCtx, dbClient, callerID, existing.VaultID)
			if err != nil {
				return err
			}
			if !access.isOwner {
				return fmt.Errorf("only the vault owner may resend invites [%w]", ErrForbidden)
			}

			if expired, err := m.lazyExpire(dbCtx, dbClient, existing); err != nil {
				return err
			} else if expired {
				return fmt.Errorf("invite %s already expired [%w]", inviteID, ErrForbidden)
			}

			var tokenHash string
			token, tokenHash, err = m.cipher.NewInviteToken(dbCtx)
			if err != nil {
				return fmt.Errorf("failed to generate invite token [%w]", err)
			}

			invite, err = dbClient.RotateInviteToken(
				dbCtx, inviteID, tokenHash, m.nowFn().Add(DefaultInviteTTL), callerID,
			)
			if err != nil {
				return err
			}

			if invitee, lookupErr := m.identity.ResolveUserByEmail(
				dbCtx, invite.InviteeEmail,
			); lookupErr == nil {
				m.notify(dbCtx, invitee.ID, NotifyKindInviteSent, map[string]string{
					"vault_id": invite.VaultID, "vault_name": access.vault.Name,
				})
			}
			return nil
		},
	); dbErr != nil {
		return models.Invite{}, "", fmt.Errorf(
			"failed to resend invite %s [%w]", inviteID, dbErr,
		)
	}

	return invite, token, nil
}

func (m *inviteManager) CancelInvite(
	ctx context.Context, callerID string, inviteID string, activeDBClient db.Database,
) (models.Invite, error) {
	var invite models.Invite

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, m.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			existing, err := dbClient.GetInvite(dbCtx, inviteID)
			if err != nil {
				return fmt.Errorf("invite %s [%w]", inviteID, ErrNotFound)
			}

			access, err := m.resolveVaultAccess(dbCtx, dbClient, callerID, existing.VaultID)
			if err != nil {
				return err
			}
			if !access.isOwner {
				return fmt.Errorf("only the vault owner may cancel invites [%w]", ErrForbidden)
			}

			invite, err = dbClient.MarkInviteCancelled(dbCtx, inviteID, callerID)
			if err != nil {
				return err
			}

			if invitee, lookupErr := m.identity.ResolveUserByEmail(
				dbCtx, invite.InviteeEmail,
			); lookupErr == nil {
				m.notify(dbCtx, invitee.ID, NotifyKindInviteCancel, map[string]string{
					"vault_id": invite.VaultID,
				})
			}
			return nil
		},
	); dbErr != nil {
		return models.Invite{}, fmt.Errorf("failed to cancel invite %s [%w]", inviteID, dbErr)
	}

	return invite, nil
}

func (m *inviteManager) ListInvites(
	ctx context.Context,
	callerID string,
	vaultID string,
	filters db.InviteQueryFilter,
	activeDBClient db.Database,
) ([]models.Invite, error) {
	var invites []models.Invite

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, m.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			access, err := m.resolveVaultAccess(dbCtx, dbClient, callerID, vaultID)
			if err != nil {
				return err
			}
			if !access.isOwner {
				return fmt.Errorf("only the vault owner may list invites [%w]", ErrForbidden)
			}

			invites, err = dbClient.ListVaultInvites(dbCtx, vaultID, filters)
			if err != nil {
				return err
			}

			// Expire what the listing caught past its date
			for idx, invite := range invites {
				if expired, err := m.lazyExpire(dbCtx, dbClient, invite); err != nil {
					return err
				} else if expired {
					invites[idx].Status = models.InviteStatusExpired
				}
			}
			return nil
		},
	); dbErr != nil {
		return nil, fmt.Errorf("failed to list invites of vault %s [%w]", vaultID, dbErr)
	}

	return invites, nil
}

// lazyExpire flip an open invite past its expiry to EXPIRED, with one-shot
// notifications to the inviter and invitee
func (m *inviteManager) lazyExpire(
	ctx context.Context, dbClient db.Database, invite models.Invite,
) (bool, error) {
	if invite.InTerminalStatus() {
		return invite.Status == models.InviteStatusExpired, nil
	}
	if !invite.ExpiredBy(m.nowFn()) {
		return false, nil
	}

	if _, err := dbClient.MarkInviteExpired(ctx, invite.ID); err != nil {
		return false, fmt.Errorf("failed to expire invite %s [%w]", invite.ID, err)
	}

	m.notify(ctx, invite.InviterID, NotifyKindInviteExpired, map[string]string{
		"vault_id": invite.VaultID, "invitee_email": invite.InviteeEmail,
	})
	if invitee, lookupErr := m.identity.ResolveUserByEmail(
		ctx, invite.InviteeEmail,
	); lookupErr == nil {
		m.notify(ctx, invitee.ID, NotifyKindInviteExpired, map[string]string{
			"vault_id": invite.VaultID,
		})
	}

	return true, nil
}

func (m *inviteManager) AcceptInvite(
	ctx context.Context, callerID string, token string, activeDBClient db.Database,
) (models.Member, error) {
	var member models.Member

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, m.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			invite, err := dbClient.GetInviteByTokenHash(
				dbCtx, encryption.HashInviteToken(token),
			)
			if err != nil {
				return fmt.Errorf("invite token unknown [%w]", ErrNotFound)
			}

			// The caller's resolved email must match the invite
			caller, err := m.identity.ResolveUserByID(dbCtx, callerID)
			if err != nil {
				return fmt.Errorf("caller %s unresolvable [%w]", callerID, ErrNotFound)
			}
			if caller.Email != invite.InviteeEmail {
				return fmt.Errorf(
					"invite was issued against another email [%w]", ErrForbidden,
				)
			}

			// Idempotent accept
			if invite.Status == models.InviteStatusAccepted {
				if invite.InviteeID == nil || *invite.InviteeID != callerID {
					return fmt.Errorf("invite already used [%w]", ErrForbidden)
				}
				member, err = dbClient.GetMember(dbCtx, invite.VaultID, callerID)
				return err
			}

			if expired, err := m.lazyExpire(dbCtx, dbClient, invite); err != nil {
				return err
			} else if expired {
				return fmt.Errorf("invite already expired [%w]", ErrForbidden)
			}
			if invite.InTerminalStatus() {
				return fmt.Errorf(
					"invite in state '%s' is no longer acceptable [%w]",
					invite.Status,
					ErrForbidden,
				)
			}

			if _, err := dbClient.MarkInviteAccepted(dbCtx, invite.ID, callerID); err != nil {
				return err
			}

			// Rejoin on the original member row when one exists
			activated := true
			if existing, err := dbClient.GetMember(
				dbCtx, invite.VaultID, callerID,
			); err == nil {
				if existing.Status == models.MemberStatusActive {
					// A standing member accepting a redundant invite only
					// consumes the invite. Privilege and visibility rows
					// stay exactly as the owner left them.
					member = existing
					activated = false
				} else {
					member, err = dbClient.ReactivateMember(
						dbCtx, existing.ID, invite.Privilege, m.nowFn(),
					)
					if err != nil {
						return err
					}
				}
			} else {
				member, err = dbClient.DefineNewMember(
					dbCtx, invite.VaultID, callerID, invite.Privilege, invite.InviterID, m.nowFn(),
				)
				if err != nil {
					return err
				}
			}

			// Newly activated members start with View on everything active
			if activated {
				if _, err := dbClient.SeedMemberVisibility(
					dbCtx, invite.VaultID, member.ID, models.VisibilityPermissionView,
				); err != nil {
					return err
				}
			}

			m.notify(dbCtx, invite.InviterID, NotifyKindInviteAccepted, map[string]string{
				"vault_id": invite.VaultID, "invitee_email": invite.InviteeEmail,
			})
			return nil
		},
	); dbErr != nil {
		return models.Member{}, fmt.Errorf("failed to accept invite [%w]", dbErr)
	}

	return member, nil
}
