package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alwitt/covault/db"
	"github.com/alwitt/covault/models"
	"github.com/apex/log"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestItemManagerVisibilityDefaulting(t *testing.T) {
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

	// Case 0: an item created by a member without an explicit visibility list
	item, err := env.items.CreateItem(
		utCtx, alice.ID, vault.ID, models.ItemTypePassword, "email login", "",
		models.PasswordPayload{Username: "alice", Password: "hunter2"}, nil, nil,
	)
	assert.Nil(err)

	// Case 1: the creator holds Edit, the bystander View, the owner Edit
	view, err := env.items.GetItem(utCtx, alice.ID, item.ID, nil)
	assert.Nil(err)
	assert.Equal(models.VisibilityPermissionEdit, view.Permission)
	view, err = env.items.GetItem(utCtx, bob.ID, item.ID, nil)
	assert.Nil(err)
	assert.Equal(models.VisibilityPermissionView, view.Permission)
	view, err = env.items.GetItem(utCtx, owner.ID, item.ID, nil)
	assert.Nil(err)
	assert.Equal(models.VisibilityPermissionEdit, view.Permission)

	// Case 2: the payload round-trips through encryption
	payload, ok := view.Payload.(models.PasswordPayload)
	assert.True(ok)
	assert.Equal("hunter2", payload.Password)

	// Case 3: an explicit visibility list is used verbatim
	restricted, err := env.items.CreateItem(
		utCtx, owner.ID, vault.ID, models.ItemTypeNote, "for alice only", "",
		models.NotePayload{Content: "private"},
		[]db.VisibilitySetting{
			{MemberID: aliceMember.ID, Permission: models.VisibilityPermissionEdit},
		},
		nil,
	)
	assert.Nil(err)
	view, err = env.items.GetItem(utCtx, alice.ID, restricted.ID, nil)
	assert.Nil(err)
	assert.Equal(models.VisibilityPermissionEdit, view.Permission)

	// Case 4: no row means the item does not exist for that caller
	_, err = env.items.GetItem(utCtx, bob.ID, restricted.ID, nil)
	assert.True(errors.Is(err, ErrNotFound))

	// Case 5: listing is filtered the same way
	items, err := env.items.ListItems(utCtx, bob.ID, vault.ID, db.ItemQueryFilter{}, nil)
	assert.Nil(err)
	assert.Len(items, 1)
	items, err = env.items.ListItems(utCtx, owner.ID, vault.ID, db.ItemQueryFilter{}, nil)
	assert.Nil(err)
	assert.Len(items, 2)
}

func TestItemManagerEditGates(t *testing.T) {
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
	bobMember := env.addMember(assert, vault.ID, bob.ID, models.MemberPrivilegeMember)

	item, err := env.items.CreateItem(
		utCtx, owner.ID, vault.ID, models.ItemTypeLink, "bank", "",
		models.LinkPayload{URL: "https://bank.example.com"},
		[]db.VisibilitySetting{
			{MemberID: aliceMember.ID, Permission: models.VisibilityPermissionEdit},
			{MemberID: bobMember.ID, Permission: models.VisibilityPermissionView},
		},
		nil,
	)
	assert.Nil(err)

	// Case 0: View is not enough to update
	_, err = env.items.UpdateItem(
		utCtx, bob.ID, item.ID, "bank", "",
		models.LinkPayload{URL: "https://phish.example.com"}, nil,
	)
	assert.True(errors.Is(err, ErrForbidden))

	// Case 1: an Edit holder updates, and the owner hears about it
	updated, err := env.items.UpdateItem(
		utCtx, alice.ID, item.ID, "bank portal", "updated",
		models.LinkPayload{URL: "https://bank.example.com/login"}, nil,
	)
	assert.Nil(err)
	assert.Equal("bank portal", updated.Title)
	changed := env.notifier.ofKind(NotifyKindItemChanged)
	assert.Len(changed, 1)
	assert.Equal(owner.ID, changed[0].UserID)

	// Case 2: the owner's own edits are not self-reported
	_, err = env.items.UpdateItem(
		utCtx, owner.ID, item.ID, "bank portal", "checked",
		models.LinkPayload{URL: "https://bank.example.com/login"}, nil,
	)
	assert.Nil(err)
	assert.Len(env.notifier.ofKind(NotifyKindItemChanged), 1)

	// Case 3: replacing the visibility table drops the omitted member
	assert.Nil(env.items.ReplaceVisibility(
		utCtx, alice.ID, item.ID,
		[]db.VisibilitySetting{
			{MemberID: aliceMember.ID, Permission: models.VisibilityPermissionEdit},
		},
		nil,
	))
	_, err = env.items.GetItem(utCtx, bob.ID, item.ID, nil)
	assert.True(errors.Is(err, ErrNotFound))

	// Case 4: delete needs Edit too
	_, err = env.items.DeleteItem(utCtx, bob.ID, item.ID, nil)
	assert.True(errors.Is(err, ErrNotFound))
	deleted, err := env.items.DeleteItem(utCtx, alice.ID, item.ID, nil)
	assert.Nil(err)
	assert.Equal(models.ItemStatusDeleted, deleted.Status)
}

func TestItemManagerRestoreWindow(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)
	utCtx := context.Background()

	env := newUTTestEnv(assert)
	owner := env.registerUser("user-owner", "owner@unit-test.dev")

	base := time.Now()
	env.freezeTime(base)

	vault, _, err := env.vaults.CreateVault(
		utCtx, owner.ID, "archive", "", models.PolicyTypeImmediate, nil, nil, nil,
	)
	assert.Nil(err)
	item, err := env.items.CreateItem(
		utCtx, owner.ID, vault.ID, models.ItemTypeNote, "draft", "",
		models.NotePayload{Content: "keep"}, nil, nil,
	)
	assert.Nil(err)
	_, err = env.items.DeleteItem(utCtx, owner.ID, item.ID, nil)
	assert.Nil(err)

	// Case 0: deleted items stay out of default listings
	items, err := env.items.ListItems(utCtx, owner.ID, vault.ID, db.ItemQueryFilter{
		TargetStatuses: []models.ItemStatusENUMType{models.ItemStatusActive},
	}, nil)
	assert.Nil(err)
	assert.Empty(items)

	// Case 1: past the window the restore is refused
	env.freezeTime(base.Add(time.Hour * 24 * 31))
	_, err = env.items.RestoreItem(utCtx, owner.ID, item.ID, nil)
	assert.True(errors.Is(err, ErrRestoreWindowClosed))

	// Case 2: within the window it goes through
	env.freezeTime(base.Add(time.Hour * 24 * 29))
	restored, err := env.items.RestoreItem(utCtx, owner.ID, item.ID, nil)
	assert.Nil(err)
	assert.Equal(models.ItemStatusActive, restored.Status)
}

func TestItemManagerDocumentFlow(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)
	utCtx := context.Background()

	env := newUTTestEnv(assert)
	owner := env.registerUser("user-owner", "owner@unit-test.dev")

	vault, _, err := env.vaults.CreateVault(
		utCtx, owner.ID, "papers", "", models.PolicyTypeImmediate, nil, nil, nil,
	)
	assert.Nil(err)

	// Case 0: upload stores the blob and defines the item
	blob := []byte("fake pdf bytes")
	item, err := env.items.UploadDocument(
		utCtx, owner.ID, vault.ID, "will", "signed copy",
		"will.pdf", "application/pdf", blob, nil, nil,
	)
	assert.Nil(err)
	assert.Equal(models.ItemTypeDocument, item.ItemType)
	assert.Len(env.storage.objects, 1)

	// Case 1: the payload carries the blob reference
	view, err := env.items.GetItem(utCtx, owner.ID, item.ID, nil)
	assert.Nil(err)
	payload, ok := view.Payload.(models.DocumentPayload)
	assert.True(ok)
	assert.Equal("will.pdf", payload.FileName)
	assert.Equal(int64(len(blob)), payload.SizeBytes)
	assert.Equal(blob, env.storage.objects[payload.StorageKey])

	// Case 2: the download URL points at the stored object
	url, err := env.items.DocumentURL(utCtx, owner.ID, item.ID, time.Minute*15, nil)
	assert.Nil(err)
	assert.True(strings.Contains(url, payload.StorageKey))

	// Case 3: non-document items have no download URL
	note, err := env.items.CreateItem(
		utCtx, owner.ID, vault.ID, models.ItemTypeNote, "note", "",
		models.NotePayload{Content: "text"}, nil, nil,
	)
	assert.Nil(err)
	_, err = env.items.DocumentURL(utCtx, owner.ID, note.ID, time.Minute, nil)
	assert.True(errors.Is(err, ErrForbidden))
}

func TestItemManagerPayloadTypeMismatch(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)
	utCtx := context.Background()

	env := newUTTestEnv(assert)
	owner := env.registerUser("user-owner", "owner@unit-test.dev")

	vault, _, err := env.vaults.CreateVault(
		utCtx, owner.ID, "shared", "", models.PolicyTypeImmediate, nil, nil, nil,
	)
	assert.Nil(err)

	// A note payload on a password item is refused at create time
	_, err = env.items.CreateItem(
		utCtx, owner.ID, vault.ID, models.ItemTypePassword, "mismatch", "",
		models.NotePayload{Content: "not a password"}, nil, nil,
	)
	assert.NotNil(err)
}

func TestItemManagerVisibilityLookupFailure(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)
	utCtx := context.Background()

	env := newUTTestEnv(assert)
	owner := env.registerUser("user-owner", "owner@unit-test.dev")
	reader := env.registerUser("user-reader", "reader@unit-test.dev")

	vault, _, err := env.vaults.CreateVault(
		utCtx, owner.ID, "shared", "", models.PolicyTypeImmediate, nil, nil, nil,
	)
	assert.Nil(err)
	env.addMember(assert, vault.ID, reader.ID, models.MemberPrivilegeMember)

	item, err := env.items.CreateItem(
		utCtx, owner.ID, vault.ID, models.ItemTypeNote, "note", "",
		models.NotePayload{Content: "hello"}, nil, nil,
	)
	assert.Nil(err)

	// Case 0: the member reads through their default View row
	_, err = env.items.GetItem(utCtx, reader.ID, item.ID, nil)
	assert.Nil(err)

	// Case 1: a broken visibility lookup surfaces as a failure, not as
	// the item being hidden
	assert.Nil(env.persistence.RunSQLInTransaction(
		utCtx, func(_ context.Context, tx *gorm.DB) error {
			return tx.Exec("DROP TABLE vault_item_visibilities").Error
		},
	))
	_, err = env.items.GetItem(utCtx, reader.ID, item.ID, nil)
	assert.NotNil(err)
	assert.False(errors.Is(err, ErrNotFound))
}
