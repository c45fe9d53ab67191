package db

import (
	"context"

	"gorm.io/gorm"
)

// DefineTables create the full table set of a deployment.
//
// Production deployments migrate through Atlas; this is for unit tests and
// throwaway SQLite instances.
func DefineTables(_ context.Context, db *gorm.DB) error {
	return db.AutoMigrate(
		VaultEventAuditDBEntry{},
		SystemParamsDBEntry{},
		VaultDBEntry{},
		VaultPolicyDBEntry{},
		MemberDBEntry{},
		InviteDBEntry{},
		ItemDBEntry{},
		ItemDetailDBEntry{},
		ItemVisibilityDBEntry{},
	)
}
