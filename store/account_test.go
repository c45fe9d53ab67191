package store

import (
	"context"
	"errors"
	"testing"

	"github.com/alwitt/covault/db"
	"github.com/alwitt/covault/models"
	"github.com/apex/log"
	"github.com/stretchr/testify/assert"
)

func TestAccountManagerPurge(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)
	utCtx := context.Background()

	env := newUTTestEnv(assert)
	alice := env.registerUser("user-alice", "alice@unit-test.dev")
	bob := env.registerUser("user-bob", "bob@unit-test.dev")

	// Vault owned by the departing user
	ownVault, _, err := env.vaults.CreateVault(
		utCtx, alice.ID, "alice's vault", "", models.PolicyTypeImmediate, nil, nil, nil,
	)
	assert.Nil(err)
	env.addMember(assert, ownVault.ID, bob.ID, models.MemberPrivilegeMember)
	_, err = env.items.CreateItem(
		utCtx, alice.ID, ownVault.ID, models.ItemTypeNote, "note", "",
		models.NotePayload{Content: "gone with the vault"}, nil, nil,
	)
	assert.Nil(err)

	// Vault the departing user merely belongs to, with an item they authored
	// and an open invite addressed to them
	otherVault, _, err := env.vaults.CreateVault(
		utCtx, bob.ID, "bob's vault", "", models.PolicyTypeImmediate, nil, nil, nil,
	)
	assert.Nil(err)
	env.addMember(assert, otherVault.ID, alice.ID, models.MemberPrivilegeAdmin)
	authored, err := env.items.CreateItem(
		utCtx, alice.ID, otherVault.ID, models.ItemTypePassword, "legacy login", "",
		models.PasswordPayload{Username: "alice", Password: "s3cret"}, nil, nil,
	)
	assert.Nil(err)
	_, _, err = env.invites.CreateInvite(
		utCtx, bob.ID, otherVault.ID, alice.Email, models.MemberPrivilegeMember, nil,
	)
	assert.Nil(err)

	// Run the purge
	report, err := env.accounts.PurgeUserAccount(utCtx, alice.ID, nil)
	assert.Nil(err)
	assert.Equal(1, report.VaultsDeleted)
	assert.Equal(1, report.MembershipsEnded)
	assert.Equal(1, report.InvitesCancelled)
	assert.Equal(1, report.ItemsReassigned)

	// Case 0: the owned vault is gone for everyone
	_, err = env.vaults.GetVault(utCtx, bob.ID, ownVault.ID, nil)
	assert.True(errors.Is(err, ErrNotFound))

	// Case 1: the authored item survives under the surviving owner
	view, err := env.items.GetItem(utCtx, bob.ID, authored.ID, nil)
	assert.Nil(err)
	assert.Equal(bob.ID, view.CreatedByUserID)

	// Case 2: the membership ended
	members, err := env.memberships.ListMembers(utCtx, bob.ID, otherVault.ID, db.MemberQueryFilter{
		TargetStatuses: []models.MemberStatusENUMType{models.MemberStatusActive},
	}, nil)
	assert.Nil(err)
	assert.Len(members, 1)
	assert.Equal(bob.ID, members[0].UserID)

	// Case 3: the open invite was cancelled
	invites, err := env.invites.ListInvites(utCtx, bob.ID, otherVault.ID, db.InviteQueryFilter{
		TargetStatuses: []models.InviteStatusENUMType{models.InviteStatusCancelled},
	}, nil)
	assert.Nil(err)
	assert.Len(invites, 1)

	// Case 4: the departing user was notified
	assert.Len(env.notifier.ofKind(NotifyKindAccountPurged), 1)
}
