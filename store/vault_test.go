package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alwitt/covault/db"
	"github.com/alwitt/covault/models"
	"github.com/apex/log"
	"github.com/stretchr/testify/assert"
)

func TestVaultManagerLifecycle(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)
	utCtx := context.Background()

	env := newUTTestEnv(assert)
	owner := env.registerUser("user-owner", "owner@unit-test.dev")
	other := env.registerUser("user-other", "other@unit-test.dev")

	// Case 0: create a vault with an immediate release policy
	vault, policy, err := env.vaults.CreateVault(
		utCtx, owner.ID, "family passwords", "shared credentials",
		models.PolicyTypeImmediate, nil, nil, nil,
	)
	assert.Nil(err)
	assert.Equal(models.ReleaseStatusReleased, policy.ReleaseStatus)

	// Case 1: the owner sees the full policy
	view, err := env.vaults.GetVault(utCtx, owner.ID, vault.ID, nil)
	assert.Nil(err)
	assert.True(view.Accessible)
	assert.Equal(models.MemberPrivilegeOwner, view.Privilege)
	assert.NotNil(view.Policy)

	// Case 2: a stranger sees nothing
	_, err = env.vaults.GetVault(utCtx, other.ID, vault.ID, nil)
	assert.True(errors.Is(err, ErrNotFound))

	// Case 3: a regular member sees the vault but not the policy
	env.addMember(assert, vault.ID, other.ID, models.MemberPrivilegeMember)
	view, err = env.vaults.GetVault(utCtx, other.ID, vault.ID, nil)
	assert.Nil(err)
	assert.True(view.Accessible)
	assert.Equal(models.MemberPrivilegeMember, view.Privilege)
	assert.Nil(view.Policy)

	// Case 4: only the owner updates vault info
	_, err = env.vaults.UpdateVault(utCtx, other.ID, vault.ID, "hijacked", "", nil)
	assert.True(errors.Is(err, ErrForbidden))
	updated, err := env.vaults.UpdateVault(
		utCtx, owner.ID, vault.ID, "family secrets", "renamed", nil,
	)
	assert.Nil(err)
	assert.Equal("family secrets", updated.Name)

	// Case 5: only the owner or an admin reads the audit trail
	_, err = env.vaults.ListVaultEvents(
		utCtx, other.ID, vault.ID, db.VaultEventQueryFilter{}, nil,
	)
	assert.True(errors.Is(err, ErrForbidden))
	events, err := env.vaults.ListVaultEvents(
		utCtx, owner.ID, vault.ID, db.VaultEventQueryFilter{}, nil,
	)
	assert.Nil(err)
	assert.NotEmpty(events)

	// Case 6: soft-delete and restore, owner only
	_, err = env.vaults.DeleteVault(utCtx, other.ID, vault.ID, nil)
	assert.True(errors.Is(err, ErrForbidden))
	deleted, err := env.vaults.DeleteVault(utCtx, owner.ID, vault.ID, nil)
	assert.Nil(err)
	assert.Equal(models.VaultStatusDeleted, deleted.Status)
	restored, err := env.vaults.RestoreVault(utCtx, owner.ID, vault.ID, nil)
	assert.Nil(err)
	assert.Equal(models.VaultStatusActive, restored.Status)

	// Case 7: the restored vault shows up in the owner's vault listing
	views, err := env.vaults.ListVaults(utCtx, owner.ID, nil)
	assert.Nil(err)
	assert.Len(views, 1)
}

func TestVaultManagerTimeBasedRelease(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)
	utCtx := context.Background()

	env := newUTTestEnv(assert)
	owner := env.registerUser("user-owner", "owner@unit-test.dev")
	member := env.registerUser("user-member", "member@unit-test.dev")

	base := time.Now()
	env.freezeTime(base)

	// Case 0: create a time gated vault releasing in two days
	releaseDate := base.Add(time.Hour * 48)
	vault, policy, err := env.vaults.CreateVault(
		utCtx, owner.ID, "letters", "", models.PolicyTypeTimeBased, &releaseDate, nil, nil,
	)
	assert.Nil(err)
	assert.Equal(models.ReleaseStatusPending, policy.ReleaseStatus)
	env.addMember(assert, vault.ID, member.ID, models.MemberPrivilegeMember)

	// Case 1: before the date the member is locked out of content
	view, err := env.vaults.GetVault(utCtx, member.ID, vault.ID, nil)
	assert.Nil(err)
	assert.False(view.Accessible)
	_, err = env.items.CreateItem(
		utCtx, member.ID, vault.ID, models.ItemTypeNote, "too early", "",
		models.NotePayload{Content: "hello"}, nil, nil,
	)
	assert.True(errors.Is(err, ErrNotAccessible))

	// Case 2: the owner is exempt from the gate
	view, err = env.vaults.GetVault(utCtx, owner.ID, vault.ID, nil)
	assert.Nil(err)
	assert.True(view.Accessible)
	assert.Equal(models.ReleaseStatusPending, view.Policy.ReleaseStatus)

	// Case 3: past the date the policy lazily flips to RELEASED
	env.freezeTime(base.Add(time.Hour * 72))
	view, err = env.vaults.GetVault(utCtx, member.ID, vault.ID, nil)
	assert.Nil(err)
	assert.True(view.Accessible)

	// Case 4: every active member was told about the release
	released := env.notifier.ofKind(NotifyKindVaultReleased)
	assert.Len(released, 2)

	// Case 5: the flip was persisted, not recomputed per read
	view, err = env.vaults.GetVault(utCtx, owner.ID, vault.ID, nil)
	assert.Nil(err)
	assert.Equal(models.ReleaseStatusReleased, view.Policy.ReleaseStatus)
	assert.Len(env.notifier.ofKind(NotifyKindVaultReleased), 2)
}

func TestVaultManagerManualReleaseAndRevoke(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)
	utCtx := context.Background()

	env := newUTTestEnv(assert)
	owner := env.registerUser("user-owner", "owner@unit-test.dev")
	member := env.registerUser("user-member", "member@unit-test.dev")

	vault, policy, err := env.vaults.CreateVault(
		utCtx, owner.ID, "escrow", "", models.PolicyTypeManualRelease, nil, nil, nil,
	)
	assert.Nil(err)
	assert.Equal(models.ReleaseStatusPending, policy.ReleaseStatus)
	env.addMember(assert, vault.ID, member.ID, models.MemberPrivilegeMember)

	// Case 0: a manual policy never opens on its own
	view, err := env.vaults.GetVault(utCtx, member.ID, vault.ID, nil)
	assert.Nil(err)
	assert.False(view.Accessible)

	// Case 1: only the owner releases
	_, err = env.vaults.ReleaseVault(utCtx, member.ID, vault.ID, nil)
	assert.True(errors.Is(err, ErrForbidden))
	policy, err = env.vaults.ReleaseVault(utCtx, owner.ID, vault.ID, nil)
	assert.Nil(err)
	assert.Equal(models.ReleaseStatusReleased, policy.ReleaseStatus)
	assert.NotNil(policy.ReleasedBy)
	assert.Len(env.notifier.ofKind(NotifyKindVaultReleased), 2)

	view, err = env.vaults.GetVault(utCtx, member.ID, vault.ID, nil)
	assert.Nil(err)
	assert.True(view.Accessible)

	// Case 2: revocation closes the vault again, permanently
	policy, err = env.vaults.RevokeVault(utCtx, owner.ID, vault.ID, nil)
	assert.Nil(err)
	assert.Equal(models.ReleaseStatusRevoked, policy.ReleaseStatus)
	view, err = env.vaults.GetVault(utCtx, member.ID, vault.ID, nil)
	assert.Nil(err)
	assert.False(view.Accessible)

	// Case 3: a revoked vault can not be re-released
	_, err = env.vaults.ReleaseVault(utCtx, owner.ID, vault.ID, nil)
	assert.NotNil(err)
}

func TestVaultManagerRestoreWindow(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)
	utCtx := context.Background()

	env := newUTTestEnv(assert)
	owner := env.registerUser("user-owner", "owner@unit-test.dev")

	base := time.Now()
	env.freezeTime(base)

	vault, _, err := env.vaults.CreateVault(
		utCtx, owner.ID, "papers", "", models.PolicyTypeImmediate, nil, nil, nil,
	)
	assert.Nil(err)
	_, err = env.vaults.DeleteVault(utCtx, owner.ID, vault.ID, nil)
	assert.Nil(err)

	// Case 0: a month and a day later the restore is refused
	env.freezeTime(base.Add(time.Hour * 24 * 31))
	_, err = env.vaults.RestoreVault(utCtx, owner.ID, vault.ID, nil)
	assert.True(errors.Is(err, ErrRestoreWindowClosed))

	// Case 1: within the window it goes through
	env.freezeTime(base.Add(time.Hour * 24 * 10))
	restored, err := env.vaults.RestoreVault(utCtx, owner.ID, vault.ID, nil)
	assert.Nil(err)
	assert.Equal(models.VaultStatusActive, restored.Status)
}

func TestVaultManagerPolicyConfigurationValidation(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)
	utCtx := context.Background()

	env := newUTTestEnv(assert)
	owner := env.registerUser("user-owner", "owner@unit-test.dev")

	base := time.Now()
	env.freezeTime(base)
	past := base.Add(-time.Hour)
	future := base.Add(time.Hour * 24)

	// Case 0: a time-based vault can not release in the past
	_, _, err := env.vaults.CreateVault(
		utCtx, owner.ID, "family", "", models.PolicyTypeTimeBased, &past, nil, nil,
	)
	assert.True(errors.Is(err, ErrInvalidPolicyConfiguration))

	// Case 1: a time-based vault needs a release date at all
	_, _, err = env.vaults.CreateVault(
		utCtx, owner.ID, "family", "", models.PolicyTypeTimeBased, nil, nil, nil,
	)
	assert.True(errors.Is(err, ErrInvalidPolicyConfiguration))

	// Case 2: immediate vaults take no dates
	_, _, err = env.vaults.CreateVault(
		utCtx, owner.ID, "family", "", models.PolicyTypeImmediate, &future, nil, nil,
	)
	assert.True(errors.Is(err, ErrInvalidPolicyConfiguration))

	// Case 3: a good configuration goes through
	vault, _, err := env.vaults.CreateVault(
		utCtx, owner.ID, "family", "", models.PolicyTypeTimeBased, &future, nil, nil,
	)
	assert.Nil(err)

	// Case 4: reconfiguring with a past expiry is refused the same way
	_, err = env.vaults.UpdateVaultPolicy(
		utCtx, owner.ID, vault.ID, models.PolicyTypeExpiryBased, nil, &past, nil,
	)
	assert.True(errors.Is(err, ErrInvalidPolicyConfiguration))
}
