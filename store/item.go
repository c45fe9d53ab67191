package store

import (
	"context"
	"fmt"
	"time"

	"github.com/alwitt/covault/db"
	"github.com/alwitt/covault/encryption"
	"github.com/alwitt/covault/models"
	"github.com/google/uuid"
)

// ItemView one secret item together with its decrypted typed payload and the
// caller's permission on it
type ItemView struct {
	models.Item
	// Permission the caller's effective permission
	Permission models.VisibilityPermissionENUMType `json:"permission"`
	// Payload the decrypted typed payload
	Payload interface{} `json:"payload"`
}

/*
ItemManager secret item operations

Every operation resolves the caller's vault standing first. For anyone but
the vault owner the release policy gates the whole operation; the per-item
visibility table then decides what the caller may do with the item itself.
*/
type ItemManager interface {
	/*
		CreateItem define a new typed secret item

		When no explicit visibility list is given, the creator gets Edit and
		every other active member View. The vault owner is implicit and always
		holds Edit either way.

			@param ctx context.Context - execution context
			@param callerID string - the creating user
			@param vaultID string - vault ID
			@param itemType models.ItemTypeENUMType - item type
			@param title string - item title
			@param description string - item description
			@param payload interface{} - the typed payload
			@param visibility []db.VisibilitySetting - explicit visibility list. Optional.
			@param activeDBClient Database - existing database transaction
			@returns item entry
	*/
	CreateItem(
		ctx context.Context,
		callerID string,
		vaultID string,
		itemType models.ItemTypeENUMType,
		title string,
		description string,
		payload interface{},
		visibility []db.VisibilitySetting,
		activeDBClient db.Database,
	) (models.Item, error)

	/*
		GetItem fetch an item with its decrypted payload

			@param ctx context.Context - execution context
			@param callerID string - the requesting user
			@param itemID string - item ID
			@param activeDBClient Database - existing database transaction
			@returns the item view
	*/
	GetItem(
		ctx context.Context, callerID string, itemID string, activeDBClient db.Database,
	) (ItemView, error)

	/*
		ListItems list the vault items visible to the caller. Payloads stay
		encrypted; fetch an item to decrypt it.

			@param ctx context.Context - execution context
			@param callerID string - the requesting user
			@param vaultID string - vault ID
			@param filters db.ItemQueryFilter - entry listing filter
			@param activeDBClient Database - existing database transaction
			@returns list of items
	*/
	ListItems(
		ctx context.Context,
		callerID string,
		vaultID string,
		filters db.ItemQueryFilter,
		activeDBClient db.Database,
	) ([]models.Item, error)

	/*
		UpdateItem update an item's descriptive fields and payload. Needs Edit.

			@param ctx context.Context - execution context
			@param callerID string - the requesting user
			@param itemID string - item ID
			@param title string - new item title
			@param description string - new item description
			@param payload interface{} - the new typed payload
			@param activeDBClient Database - existing database transaction
			@returns updated item entry
	*/
	UpdateItem(
		ctx context.Context,
		callerID string,
		itemID string,
		title string,
		description string,
		payload interface{},
		activeDBClient db.Database,
	) (models.Item, error)

	/*
		DeleteItem soft-delete an item. Needs Edit.

			@param ctx context.Context - execution context
			@param callerID string - the requesting user
			@param itemID string - item ID
			@param activeDBClient Database - existing database transaction
			@returns updated item entry
	*/
	DeleteItem(
		ctx context.Context, callerID string, itemID string, activeDBClient db.Database,
	) (models.Item, error)

	/*
		RestoreItem restore a soft-deleted item. Needs Edit, and only within
		the restore window; past it the restore is refused, never destructive.

			@param ctx context.Context - execution context
			@param callerID string - the requesting user
			@param itemID string - item ID
			@param activeDBClient Database - existing database transaction
			@returns updated item entry
	*/
	RestoreItem(
		ctx context.Context, callerID string, itemID string, activeDBClient db.Database,
	) (models.Item, error)

	/*
		ReplaceVisibility replace the item's full visibility table. Needs Edit.
		Members absent from the new list lose all access.

			@param ctx context.Context - execution context
			@param callerID string - the requesting user
			@param itemID string - item ID
			@param visibility []db.VisibilitySetting - the new visibility table
			@param activeDBClient Database - existing database transaction
	*/
	ReplaceVisibility(
		ctx context.Context,
		callerID string,
		itemID string,
		visibility []db.VisibilitySetting,
		activeDBClient db.Database,
	) error

	/*
		UploadDocument store a document blob externally and define the
		DOCUMENT item referencing it

			@param ctx context.Context - execution context
			@param callerID string - the creating user
			@param vaultID string - vault ID
			@param title string - item title
			@param description string - item description
			@param fileName string - original file name
			@param contentType string - MIME type of the blob
			@param data []byte - the blob
			@param visibility []db.VisibilitySetting - explicit visibility list. Optional.
			@param activeDBClient Database - existing database transaction
			@returns item entry
	*/
	UploadDocument(
		ctx context.Context,
		callerID string,
		vaultID string,
		title string,
		description string,
		fileName string,
		contentType string,
		data []byte,
		visibility []db.VisibilitySetting,
		activeDBClient db.Database,
	) (models.Item, error)

	/*
		DocumentURL produce a time-limited download URL for a DOCUMENT item's
		blob. Needs View.

			@param ctx context.Context - execution context
			@param callerID string - the requesting user
			@param itemID string - item ID
			@param ttl time.Duration - URL validity window
			@param activeDBClient Database - existing database transaction
			@returns the URL
	*/
	DocumentURL(
		ctx context.Context,
		callerID string,
		itemID string,
		ttl time.Duration,
		activeDBClient db.Database,
	) (string, error)
}

// itemManager implements ItemManager
type itemManager struct {
	managerCore
	storage Storage
}

/*
NewItemManager define new item manager

	@param ctx context.Context - execution context
	@param persistence db.Client - persistence layer client
	@param cipher encryption.CipherEngine - cipher engine
	@param notifier Notifier - notification delivery
	@param identity Identity - identity resolution
	@param storage Storage - document blob storage
	@returns manager instance
*/
func NewItemManager(
	_ context.Context,
	persistence db.Client,
	cipher encryption.CipherEngine,
	notifier Notifier,
	identity Identity,
	storage Storage,
) (ItemManager, error) {
	return &itemManager{
		managerCore: newManagerCore("item-manager", persistence, cipher, notifier, identity),
		storage:     storage,
	}, nil
}

// gateContent enforce the vault-level release policy gate for non-owners
func (m *itemManager) gateContent(access vaultAccess) error {
	if !access.contentAccessible(m.nowFn()) {
		return fmt.Errorf(
			"content of vault %s is gated [%w]", access.vault.ID, ErrNotAccessible,
		)
	}
	return nil
}

// sealPayload marshal and encrypt a typed payload with the vault content key
func (m *itemManager) sealPayload(
	ctx context.Context,
	vault models.Vault,
	itemType models.ItemTypeENUMType,
	payload interface{},
) (encryption.EncryptedData, error) {
	plainText, err := models.MarshalItemPayload(itemType, payload)
	if err != nil {
		return encryption.EncryptedData{}, fmt.Errorf(
			"failed to serialize item payload [%w]", err,
		)
	}

	key, err := m.cipher.DeriveVaultKey(ctx, vault.ID, vault.OwnerID)
	if err != nil {
		return encryption.EncryptedData{}, fmt.Errorf(
			"failed to derive content key of vault %s [%w]", vault.ID, err,
		)
	}

	encrypted, err := m.cipher.Encrypt(ctx, key, plainText)
	if err != nil {
		return encryption.EncryptedData{}, fmt.Errorf(
			"failed to encrypt item payload [%w]", err,
		)
	}

	return encrypted, nil
}

// openPayload decrypt and parse an item's stored payload
func (m *itemManager) openPayload(
	ctx context.Context, vault models.Vault, item models.Item, detail models.ItemDetail,
) (interface{}, error) {
	key, err := m.cipher.DeriveVaultKey(ctx, vault.ID, vault.OwnerID)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to derive content key of vault %s [%w]", vault.ID, err,
		)
	}

	plainText, err := m.cipher.Decrypt(ctx, key, encryption.EncryptedData{
		CipherText: detail.EncPayload, Nonce: detail.EncNonce,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt payload of item %s [%w]", item.ID, err)
	}

	return models.UnmarshalItemPayload(item.ItemType, plainText)
}

// defaultVisibility creator Edit, every other active member View. The vault
// owner is implicit and never gets a row.
func (m *itemManager) defaultVisibility(
	ctx context.Context, dbClient db.Database, access vaultAccess,
) ([]db.VisibilitySetting, error) {
	members, err := dbClient.ListVaultMembers(ctx, access.vault.ID, db.MemberQueryFilter{
		TargetStatuses: []models.MemberStatusENUMType{models.MemberStatusActive},
	})
	if err != nil {
		return nil, fmt.Errorf(
			"failed to list members of vault %s [%w]", access.vault.ID, err,
		)
	}

	settings := []db.VisibilitySetting{}
	for _, member := range members {
		if member.UserID == access.vault.OwnerID {
			continue
		}
		permission := models.VisibilityPermissionView
		if member.UserID == access.member.UserID {
			permission = models.VisibilityPermissionEdit
		}
		settings = append(settings, db.VisibilitySetting{
			MemberID: member.ID, Permission: permission,
		})
	}
	return settings, nil
}

// scrubVisibility drop rows targeting the implicit owner and members of
// other vaults
func scrubVisibility(
	ctx context.Context,
	dbClient db.Database,
	access vaultAccess,
	visibility []db.VisibilitySetting,
) ([]db.VisibilitySetting, error) {
	settings := []db.VisibilitySetting{}
	for _, setting := range visibility {
		member, err := dbClient.GetMemberByID(ctx, setting.MemberID)
		if err != nil || member.VaultID != access.vault.ID {
			return nil, fmt.Errorf("member %s [%w]", setting.MemberID, ErrNotFound)
		}
		if member.UserID == access.vault.OwnerID {
			continue
		}
		settings = append(settings, setting)
	}
	return settings, nil
}

func (m *itemManager) CreateItem(
	ctx context.Context,
	callerID string,
	vaultID string,
	itemType models.ItemTypeENUMType,
	title string,
	description string,
	payload interface{},
	visibility []db.VisibilitySetting,
	activeDBClient db.Database,
) (models.Item, error) {
	var item models.Item

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, m.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			access, err := m.resolveVaultAccess(dbCtx, dbClient, callerID, vaultID)
			if err != nil {
				return err
			}
			if err := m.gateContent(access); err != nil {
				return err
			}

			var settings []db.VisibilitySetting
			if visibility == nil {
				settings, err = m.defaultVisibility(dbCtx, dbClient, access)
			} else {
				settings, err = scrubVisibility(dbCtx, dbClient, access, visibility)
			}
			if err != nil {
				return err
			}

			encrypted, err := m.sealPayload(dbCtx, access.vault, itemType, payload)
			if err != nil {
				return err
			}

			item, err = dbClient.DefineNewItem(
				dbCtx, vaultID, callerID, itemType, title, description,
				encrypted.CipherText, encrypted.Nonce, settings,
			)
			return err
		},
	); dbErr != nil {
		return models.Item{}, fmt.Errorf(
			"failed to create item in vault %s [%w]", vaultID, dbErr,
		)
	}

	return item, nil
}

func (m *itemManager) GetItem(
	ctx context.Context, callerID string, itemID string, activeDBClient db.Database,
) (ItemView, error) {
	var view ItemView

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, m.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			item, err := dbClient.GetItem(dbCtx, itemID)
			if err != nil {
				return fmt.Errorf("item %s [%w]", itemID, ErrNotFound)
			}

			access, err := m.resolveVaultAccess(dbCtx, dbClient, callerID, item.VaultID)
			if err != nil {
				return err
			}
			if err := m.gateContent(access); err != nil {
				return err
			}

			permission, visible, err := m.effectivePermission(dbCtx, dbClient, access, itemID)
			if err != nil {
				return err
			}
			if !visible {
				return fmt.Errorf("item %s [%w]", itemID, ErrNotFound)
			}

			detail, err := dbClient.GetItemDetail(dbCtx, itemID)
			if err != nil {
				return fmt.Errorf("failed to fetch payload of item %s [%w]", itemID, err)
			}

			payload, err := m.openPayload(dbCtx, access.vault, item, detail)
			if err != nil {
				return err
			}

			view = ItemView{Item: item, Permission: permission, Payload: payload}
			return nil
		},
	); dbErr != nil {
		return ItemView{}, fmt.Errorf("failed to fetch item %s [%w]", itemID, dbErr)
	}

	return view, nil
}

func (m *itemManager) ListItems(
	ctx context.Context,
	callerID string,
	vaultID string,
	filters db.ItemQueryFilter,
	activeDBClient db.Database,
) ([]models.Item, error) {
	items := []models.Item{}

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, m.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			access, err := m.resolveVaultAccess(dbCtx, dbClient, callerID, vaultID)
			if err != nil {
				return err
			}
			if err := m.gateContent(access); err != nil {
				return err
			}

			allItems, err := dbClient.ListVaultItems(dbCtx, vaultID, filters)
			if err != nil {
				return err
			}

			for _, item := range allItems {
				_, visible, err := m.effectivePermission(dbCtx, dbClient, access, item.ID)
				if err != nil {
					return err
				}
				if visible {
					items = append(items, item)
				}
			}
			return nil
		},
	); dbErr != nil {
		return nil, fmt.Errorf("failed to list items of vault %s [%w]", vaultID, dbErr)
	}

	return items, nil
}

// resolveItemForEdit shared gate for the mutating item operations
func (m *itemManager) resolveItemForEdit(
	ctx context.Context, dbClient db.Database, callerID string, itemID string,
) (models.Item, vaultAccess, error) {
	item, err := dbClient.GetItem(ctx, itemID)
	if err != nil {
		return models.Item{}, vaultAccess{}, fmt.Errorf("item %s [%w]", itemID, ErrNotFound)
	}

	access, err := m.resolveVaultAccess(ctx, dbClient, callerID, item.VaultID)
	if err != nil {
		return models.Item{}, vaultAccess{}, err
	}
	if err := m.gateContent(access); err != nil {
		return models.Item{}, vaultAccess{}, err
	}

	permission, visible, err := m.effectivePermission(ctx, dbClient, access, itemID)
	if err != nil {
		return models.Item{}, vaultAccess{}, err
	}
	if !visible {
		return models.Item{}, vaultAccess{}, fmt.Errorf("item %s [%w]", itemID, ErrNotFound)
	}
	if permission != models.VisibilityPermissionEdit {
		return models.Item{}, vaultAccess{}, fmt.Errorf(
			"edit permission required on item %s [%w]", itemID, ErrForbidden,
		)
	}

	return item, access, nil
}

// notifyOwnerItemChanged tell the owner a non-owner touched an item
func (m *itemManager) notifyOwnerItemChanged(
	ctx context.Context, access vaultAccess, item models.Item, action string,
) {
	if access.isOwner {
		return
	}
	m.notify(ctx, access.vault.OwnerID, NotifyKindItemChanged, map[string]string{
		"vault_id": access.vault.ID,
		"item_id":  item.ID,
		"action":   action,
		"actor":    access.member.UserID,
	})
}

func (m *itemManager) UpdateItem(
	ctx context.Context,
	callerID string,
	itemID string,
	title string,
	description string,
	payload interface{},
	activeDBClient db.Database,
) (models.Item, error) {
	var item models.Item

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, m.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			existing, access, err := m.resolveItemForEdit(dbCtx, dbClient, callerID, itemID)
			if err != nil {
				return err
			}

			encrypted, err := m.sealPayload(dbCtx, access.vault, existing.ItemType, payload)
			if err != nil {
				return err
			}

			item, err = dbClient.UpdateItem(
				dbCtx, itemID, title, description,
				encrypted.CipherText, encrypted.Nonce, callerID,
			)
			if err != nil {
				return err
			}

			m.notifyOwnerItemChanged(dbCtx, access, item, "update")
			return nil
		},
	); dbErr != nil {
		return models.Item{}, fmt.Errorf("failed to update item %s [%w]", itemID, dbErr)
	}

	return item, nil
}

func (m *itemManager) DeleteItem(
	ctx context.Context, callerID string, itemID string, activeDBClient db.Database,
) (models.Item, error) {
	var item models.Item

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, m.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			_, access, err := m.resolveItemForEdit(dbCtx, dbClient, callerID, itemID)
			if err != nil {
				return err
			}

			item, err = dbClient.MarkItemDeleted(dbCtx, itemID, callerID, m.nowFn())
			if err != nil {
				return err
			}

			m.notifyOwnerItemChanged(dbCtx, access, item, "delete")
			return nil
		},
	); dbErr != nil {
		return models.Item{}, fmt.Errorf("failed to delete item %s [%w]", itemID, dbErr)
	}

	return item, nil
}

func (m *itemManager) RestoreItem(
	ctx context.Context, callerID string, itemID string, activeDBClient db.Database,
) (models.Item, error) {
	var item models.Item

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, m.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			existing, _, err := m.resolveItemForEdit(dbCtx, dbClient, callerID, itemID)
			if err != nil {
				return err
			}

			if existing.Status == models.ItemStatusDeleted &&
				!models.CanRestore(existing.DeletedAt, m.nowFn()) {
				return fmt.Errorf(
					"item %s was deleted too long ago [%w]", itemID, ErrRestoreWindowClosed,
				)
			}

			item, err = dbClient.MarkItemActive(dbCtx, itemID, callerID)
			return err
		},
	); dbErr != nil {
		return models.Item{}, fmt.Errorf("failed to restore item %s [%w]", itemID, dbErr)
	}

	return item, nil
}

func (m *itemManager) ReplaceVisibility(
	ctx context.Context,
	callerID string,
	itemID string,
	visibility []db.VisibilitySetting,
	activeDBClient db.Database,
) error {
	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, m.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			_, access, err := m.resolveItemForEdit(dbCtx, dbClient, callerID, itemID)
			if err != nil {
				return err
			}

			settings, err := scrubVisibility(dbCtx, dbClient, access, visibility)
			if err != nil {
				return err
			}

			return dbClient.ReplaceItemVisibility(dbCtx, itemID, settings, callerID)
		},
	); dbErr != nil {
		return fmt.Errorf(
			"failed to replace visibility table of item %s [%w]", itemID, dbErr,
		)
	}

	return nil
}

func (m *itemManager) UploadDocument(
	ctx context.Context,
	callerID string,
	vaultID string,
	title string,
	description string,
	fileName string,
	contentType string,
	data []byte,
	visibility []db.VisibilitySetting,
	activeDBClient db.Database,
) (models.Item, error) {
	if m.storage == nil {
		return models.Item{}, fmt.Errorf("no document storage configured")
	}

	objectKey := fmt.Sprintf("vaults/%s/documents/%s", vaultID, uuid.NewString())
	storedKey, err := m.storage.Put(ctx, objectKey, data)
	if err != nil {
		return models.Item{}, fmt.Errorf("failed to store document blob [%w]", err)
	}

	item, err := m.CreateItem(
		ctx, callerID, vaultID, models.ItemTypeDocument, title, description,
		models.DocumentPayload{
			StorageKey:  storedKey,
			FileName:    fileName,
			ContentType: contentType,
			SizeBytes:   int64(len(data)),
		},
		visibility,
		activeDBClient,
	)
	if err != nil {
		// The item never materialized; drop the orphaned blob
		if _, delErr := m.storage.Delete(ctx, storedKey); delErr != nil {
			return models.Item{}, fmt.Errorf(
				"failed to drop orphaned document blob after %v [%w]", err, delErr,
			)
		}
		return models.Item{}, err
	}

	return item, nil
}

func (m *itemManager) DocumentURL(
	ctx context.Context,
	callerID string,
	itemID string,
	ttl time.Duration,
	activeDBClient db.Database,
) (string, error) {
	if m.storage == nil {
		return "", fmt.Errorf("no document storage configured")
	}

	view, err := m.GetItem(ctx, callerID, itemID, activeDBClient)
	if err != nil {
		return "", err
	}
	if view.ItemType != models.ItemTypeDocument {
		return "", fmt.Errorf(
			"item %s is a '%s', not a document [%w]", itemID, view.ItemType, ErrForbidden,
		)
	}

	payload, ok := view.Payload.(models.DocumentPayload)
	if !ok {
		return "", fmt.Errorf("document payload of item %s malformed", itemID)
	}

	url, err := m.storage.PresignedURL(ctx, payload.StorageKey, ttl)
	if err != nil {
		return "", fmt.Errorf("failed to sign URL for item %s [%w]", itemID, err)
	}

	return url, nil
}
