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

func TestMembershipManagerPrivilegeRules(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)
	utCtx := context.Background()

	env := newUTTestEnv(assert)
	owner := env.registerUser("user-owner", "owner@unit-test.dev")
	alice := env.registerUser("user-alice", "alice@unit-test.dev")
	bob := env.registerUser("user-bob", "bob@unit-test.dev")

	vault, _, err := env.vaults.CreateVault(
		utCtx, owner.ID, "shared", "", models.PolicyTypeImmediate, nil, nil, nil,
	)
	assert.Nil(err)
	aliceMember := env.addMember(assert, vault.ID, alice.ID, models.MemberPrivilegeMember)
	env.addMember(assert, vault.ID, bob.ID, models.MemberPrivilegeMember)

	// Case 0: any active member may list the roster
	members, err := env.memberships.ListMembers(utCtx, bob.ID, vault.ID, db.MemberQueryFilter{}, nil)
	assert.Nil(err)
	assert.Len(members, 3)

	// Case 1: only the owner changes privileges
	_, err = env.memberships.UpdateMemberPrivilege(
		utCtx, bob.ID, vault.ID, aliceMember.ID, models.MemberPrivilegeAdmin, nil,
	)
	assert.True(errors.Is(err, ErrForbidden))

	// Case 2: a privilege update can never hand out ownership
	_, err = env.memberships.UpdateMemberPrivilege(
		utCtx, owner.ID, vault.ID, aliceMember.ID, models.MemberPrivilegeOwner, nil,
	)
	assert.True(errors.Is(err, ErrForbidden))

	// Case 3: promote to admin
	promoted, err := env.memberships.UpdateMemberPrivilege(
		utCtx, owner.ID, vault.ID, aliceMember.ID, models.MemberPrivilegeAdmin, nil,
	)
	assert.Nil(err)
	assert.Equal(models.MemberPrivilegeAdmin, promoted.Privilege)

	// Case 4: the owner can not leave
	_, err = env.memberships.LeaveVault(utCtx, owner.ID, vault.ID, nil)
	assert.True(errors.Is(err, ErrForbidden))

	// Case 5: removal rules
	ownerMember, err := func() (models.Member, error) {
		members, err := env.memberships.ListMembers(
			utCtx, owner.ID, vault.ID, db.MemberQueryFilter{
				TargetPrivileges: []models.MemberPrivilegeENUMType{models.MemberPrivilegeOwner},
			}, nil,
		)
		if err != nil || len(members) != 1 {
			return models.Member{}, err
		}
		return members[0], nil
	}()
	assert.Nil(err)
	_, err = env.memberships.RemoveMember(utCtx, owner.ID, vault.ID, ownerMember.ID, nil)
	assert.True(errors.Is(err, ErrForbidden))
	_, err = env.memberships.RemoveMember(utCtx, alice.ID, vault.ID, ownerMember.ID, nil)
	assert.True(errors.Is(err, ErrForbidden))

	// Case 6: a member leaves, and the removal of the other works
	left, err := env.memberships.LeaveVault(utCtx, bob.ID, vault.ID, nil)
	assert.Nil(err)
	assert.Equal(models.MemberStatusLeft, left.Status)
	removed, err := env.memberships.RemoveMember(utCtx, owner.ID, vault.ID, aliceMember.ID, nil)
	assert.Nil(err)
	assert.Equal(models.MemberStatusRemoved, removed.Status)

	// Case 7: neither shows up as active anymore
	members, err = env.memberships.ListMembers(utCtx, owner.ID, vault.ID, db.MemberQueryFilter{
		TargetStatuses: []models.MemberStatusENUMType{models.MemberStatusActive},
	}, nil)
	assert.Nil(err)
	assert.Len(members, 1)
}

func TestMembershipManagerOwnershipTransfer(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)
	utCtx := context.Background()

	env := newUTTestEnv(assert)
	owner := env.registerUser("user-owner", "owner@unit-test.dev")
	alice := env.registerUser("user-alice", "alice@unit-test.dev")
	bob := env.registerUser("user-bob", "bob@unit-test.dev")

	vault, _, err := env.vaults.CreateVault(
		utCtx, owner.ID, "handover", "", models.PolicyTypeImmediate, nil, nil, nil,
	)
	assert.Nil(err)
	aliceMember := env.addMember(assert, vault.ID, alice.ID, models.MemberPrivilegeAdmin)
	bobMember := env.addMember(assert, vault.ID, bob.ID, models.MemberPrivilegeMember)

	// Case 0: transfer to a non-admin is refused and the owner unchanged
	_, err = env.memberships.TransferOwnership(utCtx, owner.ID, vault.ID, bobMember.ID, nil)
	assert.True(errors.Is(err, ErrForbidden))
	view, err := env.vaults.GetVault(utCtx, owner.ID, vault.ID, nil)
	assert.Nil(err)
	assert.Equal(owner.ID, view.OwnerID)

	// Case 1: only the owner transfers
	_, err = env.memberships.TransferOwnership(utCtx, alice.ID, vault.ID, aliceMember.ID, nil)
	assert.True(errors.Is(err, ErrForbidden))

	// Case 2: transfer to an active admin
	updated, err := env.memberships.TransferOwnership(utCtx, owner.ID, vault.ID, aliceMember.ID, nil)
	assert.Nil(err)
	assert.Equal(alice.ID, updated.OwnerID)
	assert.Equal(owner.ID, updated.OriginalOwnerID)

	// Case 3: exactly one owner remains, and the old owner became admin
	members, err := env.memberships.ListMembers(utCtx, alice.ID, vault.ID, db.MemberQueryFilter{
		TargetPrivileges: []models.MemberPrivilegeENUMType{models.MemberPrivilegeOwner},
	}, nil)
	assert.Nil(err)
	assert.Len(members, 1)
	assert.Equal(alice.ID, members[0].UserID)
	members, err = env.memberships.ListMembers(utCtx, alice.ID, vault.ID, db.MemberQueryFilter{
		TargetPrivileges: []models.MemberPrivilegeENUMType{models.MemberPrivilegeAdmin},
	}, nil)
	assert.Nil(err)
	assert.Len(members, 1)
	assert.Equal(owner.ID, members[0].UserID)

	// Case 4: the demoted previous owner lost owner-only operations
	_, err = env.vaults.DeleteVault(utCtx, owner.ID, vault.ID, nil)
	assert.True(errors.Is(err, ErrForbidden))
}
