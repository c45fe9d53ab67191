package db

import (
	"context"
	"fmt"
	"time"

	"github.com/alwitt/covault/models"
	"github.com/google/uuid"
)

/*
DefineNewItem define a new vault item with its encrypted payload and
initial visibility table

	@param ctx context.Context - execution context
	@param vaultID string - vault ID
	@param creatorID string - the creating user
	@param itemType models.ItemTypeENUMType - item type
	@param title string - item title
	@param description string - item description
	@param encPayload []byte - the encrypted serialized payload
	@param encNonce []byte - the encryption nonce used
	@param visibilities []VisibilitySetting - the initial visibility table
	@returns item entry
*/
func (d *databaseImpl) DefineNewItem(
	_ context.Context,
	vaultID string,
	creatorID string,
	itemType models.ItemTypeENUMType,
	title string,
	description string,
	encPayload []byte,
	encNonce []byte,
	visibilities []VisibilitySetting,
) (models.Item, error) {
	newEntry := ItemDBEntry{
		Item: models.Item{
			ID:              uuid.NewString(),
			VaultID:         vaultID,
			CreatedByUserID: creatorID,
			ItemType:        itemType,
			Title:           title,
			Description:     description,
			Status:          models.ItemStatusActive,
		},
	}

	if err := d.validator.Struct(&newEntry); err != nil {
		return models.Item{}, fmt.Errorf(
			"new item for vault %s is not valid [%w]", vaultID, err,
		)
	}

	if tmp := d.db.Create(&newEntry); tmp.Error != nil {
		return models.Item{}, fmt.Errorf(
			"new item for vault %s failed insert [%w]", vaultID, tmp.Error,
		)
	}

	detailEntry := ItemDetailDBEntry{
		ItemDetail: models.ItemDetail{
			ID:         uuid.NewString(),
			ItemID:     newEntry.ID,
			EncPayload: encPayload,
			EncNonce:   encNonce,
		},
	}
	if err := d.validator.Struct(&detailEntry); err != nil {
		return models.Item{}, fmt.Errorf(
			"new item detail for vault %s is not valid [%w]", vaultID, err,
		)
	}
	if tmp := d.db.Create(&detailEntry); tmp.Error != nil {
		return models.Item{}, fmt.Errorf(
			"new item detail for vault %s failed insert [%w]", vaultID, tmp.Error,
		)
	}

	for _, setting := range visibilities {
		visEntry := ItemVisibilityDBEntry{
			ItemVisibility: models.ItemVisibility{
				ID:         uuid.NewString(),
				ItemID:     newEntry.ID,
				MemberID:   setting.MemberID,
				Permission: setting.Permission,
			},
		}
		if err := d.validator.Struct(&visEntry); err != nil {
			return models.Item{}, fmt.Errorf(
				"visibility entry for item %s is not valid [%w]", newEntry.ID, err,
			)
		}
		if tmp := d.db.Create(&visEntry); tmp.Error != nil {
			return models.Item{}, fmt.Errorf(
				"visibility entry for item %s failed insert [%w]", newEntry.ID, tmp.Error,
			)
		}
	}

	// Record this event
	if _, err := d.defineNewVaultEvent(
		vaultID,
		creatorID,
		models.VaultEventTypeItemCreate,
		models.VaultEventItemRelated{ItemID: newEntry.ID, ItemTitle: title},
	); err != nil {
		return models.Item{}, fmt.Errorf("failed to log item creation audit event [%w]", err)
	}

	return newEntry.Item, nil
}

// getItemEntry find an item by ID
func (d *databaseImpl) getItemEntry(itemID string) (ItemDBEntry, error) {
	var entry ItemDBEntry
	err := d.db.Where("id = ?", itemID).First(&entry).Error
	return entry, err
}

/*
GetItem fetch a vault item by ID

	@param ctx context.Context - execution context
	@param itemID string - item ID
	@returns item entry
*/
func (d *databaseImpl) GetItem(_ context.Context, itemID string) (models.Item, error) {
	entry, err := d.getItemEntry(itemID)
	if err != nil {
		return models.Item{}, fmt.Errorf("failed to fetch item %s [%w]", itemID, err)
	}
	return entry.Item, nil
}

/*
GetItemDetail fetch the encrypted payload of an item

	@param ctx context.Context - execution context
	@param itemID string - item ID
	@returns item detail entry
*/
func (d *databaseImpl) GetItemDetail(
	_ context.Context, itemID string,
) (models.ItemDetail, error) {
	var entry ItemDetailDBEntry
	if tmp := d.db.Where("item_id = ?", itemID).First(&entry); tmp.Error != nil {
		return models.ItemDetail{}, fmt.Errorf(
			"failed to fetch detail of item %s [%w]", itemID, tmp.Error,
		)
	}
	return entry.ItemDetail, nil
}

/*
ListVaultItems list items of a vault

	@param ctx context.Context - execution context
	@param vaultID string - vault ID
	@param filters ItemQueryFilter - entry listing filter
	@return list of items
*/
func (d *databaseImpl) ListVaultItems(
	_ context.Context, vaultID string, filters ItemQueryFilter,
) ([]models.Item, error) {
	query := d.db.Model(&ItemDBEntry{}).Where("vault_id = ?", vaultID)

	if len(filters.TargetStatuses) > 0 {
		query = query.Where("status in ?", filters.TargetStatuses)
	}
	if len(filters.TargetItemTypes) > 0 {
		query = query.Where("item_type in ?", filters.TargetItemTypes)
	}

	if filters.Limit != nil {
		query = query.Limit(*filters.Limit)
	}
	if filters.Offset != nil {
		query = query.Offset(*filters.Offset)
	}

	query = query.Order("created_at")

	var entries []ItemDBEntry
	if tmp := query.Find(&entries); tmp.Error != nil {
		return nil, fmt.Errorf("failed to list items of vault %s [%w]", vaultID, tmp.Error)
	}

	result := []models.Item{}
	for _, entry := range entries {
		result = append(result, entry.Item)
	}

	return result, nil
}

/*
UpdateItem update an item's descriptive fields and encrypted payload

	@param ctx context.Context - execution context
	@param itemID string - item ID
	@param title string - new item title
	@param description string - new item description
	@param encPayload []byte - the new encrypted serialized payload
	@param encNonce []byte - the encryption nonce used
	@param actorID string - the user performing the change
	@returns updated item entry
*/
func (d *databaseImpl) UpdateItem(
	_ context.Context,
	itemID string,
	title string,
	description string,
	encPayload []byte,
	encNonce []byte,
	actorID string,
) (models.Item, error) {
	entry, err := d.getItemEntry(itemID)
	if err != nil {
		return models.Item{}, fmt.Errorf("failed to fetch item %s [%w]", itemID, err)
	}

	entry.Title = title
	entry.Description = description
	if err := d.validator.Struct(&entry); err != nil {
		return models.Item{}, fmt.Errorf("updated item %s is not valid [%w]", itemID, err)
	}
	if tmp := d.db.Select("title", "description").Updates(&entry); tmp.Error != nil {
		return models.Item{}, fmt.Errorf("item %s update failed [%w]", itemID, tmp.Error)
	}

	var detailEntry ItemDetailDBEntry
	if tmp := d.db.Where("item_id = ?", itemID).First(&detailEntry); tmp.Error != nil {
		return models.Item{}, fmt.Errorf(
			"failed to fetch detail of item %s [%w]", itemID, tmp.Error,
		)
	}
	detailEntry.EncPayload = encPayload
	detailEntry.EncNonce = encNonce
	if tmp := d.db.Updates(&detailEntry); tmp.Error != nil {
		return models.Item{}, fmt.Errorf("item %s detail update failed [%w]", itemID, tmp.Error)
	}

	// Record this event
	if _, err := d.defineNewVaultEvent(
		entry.VaultID,
		actorID,
		models.VaultEventTypeItemUpdate,
		models.VaultEventItemRelated{ItemID: entry.ID, ItemTitle: entry.Title},
	); err != nil {
		return models.Item{}, fmt.Errorf("failed to log item update audit event [%w]", err)
	}

	return entry.Item, nil
}

/*
MarkItemDeleted soft-delete an item

	@param ctx context.Context - execution context
	@param itemID string - item ID
	@param actorID string - the user performing the delete
	@param now time.Time - current time
	@returns updated item entry
*/
func (d *databaseImpl) MarkItemDeleted(
	_ context.Context, itemID string, actorID string, now time.Time,
) (models.Item, error) {
	entry, err := d.getItemEntry(itemID)
	if err != nil {
		return models.Item{}, fmt.Errorf("failed to fetch item %s [%w]", itemID, err)
	}

	if entry.Status == models.ItemStatusDeleted {
		// NOOP
		return entry.Item, nil
	}

	entry.Status = models.ItemStatusDeleted
	deleted := now
	entry.DeletedAt = &deleted
	if tmp := d.db.Updates(&entry); tmp.Error != nil {
		return models.Item{}, fmt.Errorf("item %s soft delete failed [%w]", itemID, tmp.Error)
	}

	// Record this event
	if _, err := d.defineNewVaultEvent(
		entry.VaultID,
		actorID,
		models.VaultEventTypeItemDelete,
		models.VaultEventItemRelated{ItemID: entry.ID, ItemTitle: entry.Title},
	); err != nil {
		return models.Item{}, fmt.Errorf("failed to log item deletion audit event [%w]", err)
	}

	return entry.Item, nil
}

/*
MarkItemActive restore a soft-deleted item

	@param ctx context.Context - execution context
	@param itemID string - item ID
	@param actorID string - the user performing the restore
	@returns updated item entry
*/
func (d *databaseImpl) MarkItemActive(
	_ context.Context, itemID string, actorID string,
) (models.Item, error) {
	entry, err := d.getItemEntry(itemID)
	if err != nil {
		return models.Item{}, fmt.Errorf("failed to fetch item %s [%w]", itemID, err)
	}

	if entry.Status == models.ItemStatusActive {
		// NOOP
		return entry.Item, nil
	}

	entry.Status = models.ItemStatusActive
	entry.DeletedAt = nil
	// Select forces the NULL write on deleted_at
	if tmp := d.db.Select("status", "deleted_at").Updates(&entry); tmp.Error != nil {
		return models.Item{}, fmt.Errorf("item %s restore failed [%w]", itemID, tmp.Error)
	}

	// Record this event
	if _, err := d.defineNewVaultEvent(
		entry.VaultID,
		actorID,
		models.VaultEventTypeItemRestore,
		models.VaultEventItemRelated{ItemID: entry.ID, ItemTitle: entry.Title},
	); err != nil {
		return models.Item{}, fmt.Errorf("failed to log item restore audit event [%w]", err)
	}

	return entry.Item, nil
}

/*
ReplaceItemVisibility replace the full visibility table of an item

Remove-all and re-insert. Entries absent from the new table lose access.

	@param ctx context.Context - execution context
	@param itemID string - item ID
	@param visibilities []VisibilitySetting - the new visibility table
	@param actorID string - the user performing the change
*/
func (d *databaseImpl) ReplaceItemVisibility(
	_ context.Context, itemID string, visibilities []VisibilitySetting, actorID string,
) error {
	entry, err := d.getItemEntry(itemID)
	if err != nil {
		return fmt.Errorf("failed to fetch item %s [%w]", itemID, err)
	}

	if tmp := d.db.Where(
		"item_id = ?", itemID,
	).Delete(&ItemVisibilityDBEntry{}); tmp.Error != nil {
		return fmt.Errorf(
			"failed to clear visibility table of item %s [%w]", itemID, tmp.Error,
		)
	}

	for _, setting := range visibilities {
		visEntry := ItemVisibilityDBEntry{
			ItemVisibility: models.ItemVisibility{
				ID:         uuid.NewString(),
				ItemID:     itemID,
				MemberID:   setting.MemberID,
				Permission: setting.Permission,
			},
		}
		if err := d.validator.Struct(&visEntry); err != nil {
			return fmt.Errorf("visibility entry for item %s is not valid [%w]", itemID, err)
		}
		if tmp := d.db.Create(&visEntry); tmp.Error != nil {
			return fmt.Errorf("visibility entry for item %s failed insert [%w]", itemID, tmp.Error)
		}
	}

	// Record this event
	if _, err := d.defineNewVaultEvent(
		entry.VaultID,
		actorID,
		models.VaultEventTypeVisibilityReplace,
		models.VaultEventItemRelated{ItemID: entry.ID, ItemTitle: entry.Title},
	); err != nil {
		return fmt.Errorf("failed to log visibility replacement audit event [%w]", err)
	}

	return nil
}

/*
GetItemVisibility fetch one member's visibility entry on an item

	@param ctx context.Context - execution context
	@param itemID string - item ID
	@param memberID string - member entry ID
	@returns visibility entry
*/
func (d *databaseImpl) GetItemVisibility(
	_ context.Context, itemID string, memberID string,
) (models.ItemVisibility, error) {
	var entry ItemVisibilityDBEntry
	if tmp := d.db.Where(
		"item_id = ? AND member_id = ?", itemID, memberID,
	).First(&entry); tmp.Error != nil {
		return models.ItemVisibility{}, fmt.Errorf(
			"failed to fetch visibility of member %s on item %s [%w]",
			memberID,
			itemID,
			tmp.Error,
		)
	}
	return entry.ItemVisibility, nil
}

/*
ListItemVisibility list the visibility table of an item

	@param ctx context.Context - execution context
	@param itemID string - item ID
	@return list of visibility entries
*/
func (d *databaseImpl) ListItemVisibility(
	_ context.Context, itemID string,
) ([]models.ItemVisibility, error) {
	var entries []ItemVisibilityDBEntry
	if tmp := d.db.Where(
		"item_id = ?", itemID,
	).Order("created_at").Find(&entries); tmp.Error != nil {
		return nil, fmt.Errorf(
			"failed to list visibility table of item %s [%w]", itemID, tmp.Error,
		)
	}

	result := []models.ItemVisibility{}
	for _, entry := range entries {
		result = append(result, entry.ItemVisibility)
	}

	return result, nil
}

/*
SeedMemberVisibility grant a member a permission on every active item of a vault

Used when a member joins or rejoins a vault. Existing entries are left alone.

	@param ctx context.Context - execution context
	@param vaultID string - vault ID
	@param memberID string - member entry ID
	@param permission models.VisibilityPermissionENUMType - the permission to grant
	@return number of visibility entries created
*/
func (d *databaseImpl) SeedMemberVisibility(
	ctx context.Context,
	vaultID string,
	memberID string,
	permission models.VisibilityPermissionENUMType,
) (int, error) {
	items, err := d.ListVaultItems(ctx, vaultID, ItemQueryFilter{
		TargetStatuses: []models.ItemStatusENUMType{models.ItemStatusActive},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list items of vault %s [%w]", vaultID, err)
	}

	created := 0
	for _, item := range items {
		var existing int64
		if tmp := d.db.Model(&ItemVisibilityDBEntry{}).Where(
			"item_id = ? AND member_id = ?", item.ID, memberID,
		).Count(&existing); tmp.Error != nil {
			return created, fmt.Errorf(
				"failed to probe visibility of member %s on item %s [%w]",
				memberID,
				item.ID,
				tmp.Error,
			)
		}
		if existing > 0 {
			continue
		}

		visEntry := ItemVisibilityDBEntry{
			ItemVisibility: models.ItemVisibility{
				ID:         uuid.NewString(),
				ItemID:     item.ID,
				MemberID:   memberID,
				Permission: permission,
			},
		}
		if tmp := d.db.Create(&visEntry); tmp.Error != nil {
			return created, fmt.Errorf(
				"visibility entry for item %s failed insert [%w]", item.ID, tmp.Error,
			)
		}
		created++
	}

	return created, nil
}

/*
ReassignVaultItemsCreator move item authorship from one user to another
within a vault

	@param ctx context.Context - execution context
	@param vaultID string - vault ID
	@param fromUserID string - the current item creator
	@param toUserID string - the new item creator
	@return number of items reassigned
*/
func (d *databaseImpl) ReassignVaultItemsCreator(
	_ context.Context, vaultID string, fromUserID string, toUserID string,
) (int, error) {
	tmp := d.db.Model(&ItemDBEntry{}).Where(
		"vault_id = ? AND created_by_user_id = ?", vaultID, fromUserID,
	).Update("created_by_user_id", toUserID)
	if tmp.Error != nil {
		return 0, fmt.Errorf(
			"failed to reassign items of vault %s from user %s [%w]",
			vaultID,
			fromUserID,
			tmp.Error,
		)
	}
	return int(tmp.RowsAffected), nil
}
