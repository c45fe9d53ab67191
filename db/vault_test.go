package db_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alwitt/covault/db"
	"github.com/alwitt/covault/models"
	"github.com/apex/log"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/logger"
)

func TestDBVaultLifecycle(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	testDB := fmt.Sprintf("/tmp/covault_ut_%s.db", ulid.Make().String())
	log.WithField("db", testDB).Debug("Test database")

	uut, err := db.NewConnection(db.GetSqliteDialector(testDB), logger.Error)
	assert.Nil(err)

	assert.Nil(uut.RunSQLInTransaction(utCtx, db.DefineTables))

	currentTime := time.Now().UTC()
	ownerID := "user-owner"

	// 1. Create a vault with an immediate release policy
	var vault models.Vault
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		var policy models.VaultPolicy
		vault, policy, err = dbClient.DefineNewVault(
			ctx, ownerID, "family passwords", "shared household secrets",
			models.PolicyTypeImmediate, nil, nil, currentTime,
		)
		assert.Nil(err)
		assert.Equal(ownerID, vault.OwnerID)
		assert.Equal(ownerID, vault.OriginalOwnerID)
		assert.Equal(models.VaultStatusActive, vault.Status)
		assert.Equal(models.ReleaseStatusReleased, policy.ReleaseStatus)
		assert.NotNil(policy.ReleasedAt)
		return err
	})
	assert.Nil(err)

	// 2. The creating user is an owner member from the start
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		member, err := dbClient.GetMember(ctx, vault.ID, ownerID)
		assert.Nil(err)
		assert.Equal(models.MemberPrivilegeOwner, member.Privilege)
		assert.Equal(models.MemberStatusActive, member.Status)
		return err
	})
	assert.Nil(err)

	// 3. Update the vault info
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		updated, err := dbClient.UpdateVaultInfo(
			ctx, vault.ID, "household passwords", "all household secrets", ownerID,
		)
		assert.Nil(err)
		assert.Equal("household passwords", updated.Name)
		return err
	})
	assert.Nil(err)

	// 4. Soft-delete the vault
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		deleted, err := dbClient.MarkVaultDeleted(ctx, vault.ID, ownerID, currentTime)
		assert.Nil(err)
		assert.Equal(models.VaultStatusDeleted, deleted.Status)
		assert.NotNil(deleted.DeletedAt)
		return err
	})
	assert.Nil(err)

	// 5. Soft-delete again is a NOOP
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		deleted, err := dbClient.MarkVaultDeleted(
			ctx, vault.ID, ownerID, currentTime.Add(time.Hour),
		)
		assert.Nil(err)
		assert.Equal(models.VaultStatusDeleted, deleted.Status)
		return err
	})
	assert.Nil(err)

	// 6. Restore the vault
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		restored, err := dbClient.MarkVaultActive(ctx, vault.ID, ownerID)
		assert.Nil(err)
		assert.Equal(models.VaultStatusActive, restored.Status)
		assert.Nil(restored.DeletedAt)
		return err
	})
	assert.Nil(err)

	// 7. Verify the audit trail captured everything
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		events, err := dbClient.ListVaultEvents(ctx, db.VaultEventQueryFilter{
			TargetVaultID: &vault.ID,
		})
		assert.Nil(err)
		seen := map[models.VaultEventTypeENUMType]int{}
		for _, event := range events {
			seen[event.EventType]++
		}
		assert.Equal(1, seen[models.VaultEventTypeVaultCreate])
		assert.Equal(1, seen[models.VaultEventTypeVaultUpdate])
		assert.Equal(1, seen[models.VaultEventTypeVaultDelete])
		assert.Equal(1, seen[models.VaultEventTypeVaultRestore])
		return err
	})
	assert.Nil(err)
}

func TestDBVaultPolicyTransitions(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	testDB := fmt.Sprintf("/tmp/covault_ut_%s.db", ulid.Make().String())
	log.WithField("db", testDB).Debug("Test database")

	uut, err := db.NewConnection(db.GetSqliteDialector(testDB), logger.Error)
	assert.Nil(err)

	assert.Nil(uut.RunSQLInTransaction(utCtx, db.DefineTables))

	currentTime := time.Now().UTC()
	ownerID := "user-owner"
	releaseDate := currentTime.Add(time.Hour * 24)

	// 1. Create a vault with a time-based release policy
	var vault models.Vault
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		var policy models.VaultPolicy
		vault, policy, err = dbClient.DefineNewVault(
			ctx, ownerID, "estate", "", models.PolicyTypeTimeBased,
			&releaseDate, nil, currentTime,
		)
		assert.Nil(err)
		assert.Equal(models.ReleaseStatusPending, policy.ReleaseStatus)
		assert.Nil(policy.ReleasedAt)
		return err
	})
	assert.Nil(err)

	// 2. Creating a time-based policy with a past release date must fail
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		past := currentTime.Add(-time.Hour)
		_, _, err := dbClient.DefineNewVault(
			ctx, ownerID, "bad", "", models.PolicyTypeTimeBased, &past, nil, currentTime,
		)
		assert.Error(err)
		return nil
	})
	assert.Nil(err)

	// 3. Advance the policy past its release date
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		policy, err := dbClient.GetVaultPolicy(ctx, vault.ID)
		assert.Nil(err)

		later := releaseDate.Add(time.Minute)
		assert.True(policy.Advance(later))
		assert.Equal(models.ReleaseStatusReleased, policy.ReleaseStatus)

		saved, err := dbClient.SaveAdvancedVaultPolicy(ctx, policy)
		assert.Nil(err)
		assert.Equal(models.ReleaseStatusReleased, saved.ReleaseStatus)
		assert.NotNil(saved.ReleasedAt)
		return err
	})
	assert.Nil(err)

	// 4. Revoke the vault
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		policy, err := dbClient.RevokeVaultPolicy(ctx, vault.ID, ownerID)
		assert.Nil(err)
		assert.Equal(models.ReleaseStatusRevoked, policy.ReleaseStatus)
		return err
	})
	assert.Nil(err)

	// 5. Revoke again is a NOOP
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		policy, err := dbClient.RevokeVaultPolicy(ctx, vault.ID, ownerID)
		assert.Nil(err)
		assert.Equal(models.ReleaseStatusRevoked, policy.ReleaseStatus)
		return err
	})
	assert.Nil(err)

	// 6. Manual release after revocation must fail
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		_, err := dbClient.ReleaseVaultPolicy(ctx, vault.ID, ownerID, currentTime)
		assert.Error(err)
		return nil
	})
	assert.Nil(err)

	// 7. Reconfiguration after revocation must fail
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		_, err := dbClient.ReconfigureVaultPolicy(
			ctx, vault.ID, models.PolicyTypeManualRelease, nil, nil, ownerID, currentTime,
		)
		assert.Error(err)
		return nil
	})
	assert.Nil(err)
}

func TestDBVaultManualRelease(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	testDB := fmt.Sprintf("/tmp/covault_ut_%s.db", ulid.Make().String())
	log.WithField("db", testDB).Debug("Test database")

	uut, err := db.NewConnection(db.GetSqliteDialector(testDB), logger.Error)
	assert.Nil(err)

	assert.Nil(uut.RunSQLInTransaction(utCtx, db.DefineTables))

	currentTime := time.Now().UTC()
	ownerID := "user-owner"

	// 1. Create a vault with a manual release policy
	var vault models.Vault
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		var policy models.VaultPolicy
		vault, policy, err = dbClient.DefineNewVault(
			ctx, ownerID, "will", "", models.PolicyTypeManualRelease, nil, nil, currentTime,
		)
		assert.Nil(err)
		assert.Equal(models.ReleaseStatusPending, policy.ReleaseStatus)
		return err
	})
	assert.Nil(err)

	// 2. Manually release
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		policy, err := dbClient.ReleaseVaultPolicy(ctx, vault.ID, ownerID, currentTime)
		assert.Nil(err)
		assert.Equal(models.ReleaseStatusReleased, policy.ReleaseStatus)
		assert.NotNil(policy.ReleasedBy)
		assert.Equal(ownerID, *policy.ReleasedBy)
		return err
	})
	assert.Nil(err)

	// 3. Release again is a NOOP
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		policy, err := dbClient.ReleaseVaultPolicy(
			ctx, vault.ID, "someone-else", currentTime.Add(time.Hour),
		)
		assert.Nil(err)
		assert.Equal(ownerID, *policy.ReleasedBy)
		return err
	})
	assert.Nil(err)
}
