// Package main - Atlas GORM migration support binary
package main

import (
	"fmt"

	"ariga.io/atlas-provider-gorm/gormschema"
	"github.com/alwitt/covault/db"
	"github.com/apex/log"
)

func main() {
	stmts, err := gormschema.New("postgres").Load(
		&db.VaultEventAuditDBEntry{},
		&db.SystemParamsDBEntry{},
		&db.VaultDBEntry{},
		&db.VaultPolicyDBEntry{},
		&db.MemberDBEntry{},
		&db.InviteDBEntry{},
		&db.ItemDBEntry{},
		&db.ItemDetailDBEntry{},
		&db.ItemVisibilityDBEntry{},
	)
	if err != nil {
		log.WithError(err).Fatal("Failed to load GORM models")
	}
	fmt.Printf("%s\n", stmts)
}
