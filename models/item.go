package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ItemTypeENUMType secret item type ENUM
type ItemTypeENUMType string

const (
	// ItemTypePassword a stored credential
	ItemTypePassword ItemTypeENUMType = "PASSWORD"
	// ItemTypeNote a secure note
	ItemTypeNote ItemTypeENUMType = "NOTE"
	// ItemTypeLink a stored link
	ItemTypeLink ItemTypeENUMType = "LINK"
	// ItemTypeCryptoWallet crypto-wallet credentials
	ItemTypeCryptoWallet ItemTypeENUMType = "CRYPTO_WALLET"
	// ItemTypeDocument an externally stored document blob
	ItemTypeDocument ItemTypeENUMType = "DOCUMENT"
)

// ItemStatusENUMType secret item status ENUM
type ItemStatusENUMType string

const (
	// ItemStatusActive item is active
	ItemStatusActive ItemStatusENUMType = "ACTIVE"
	// ItemStatusDeleted item is soft-deleted
	ItemStatusDeleted ItemStatusENUMType = "DELETED"
)

// VisibilityPermissionENUMType per-item member permission ENUM
type VisibilityPermissionENUMType string

const (
	// VisibilityPermissionView member may view the item
	VisibilityPermissionView VisibilityPermissionENUMType = "VIEW"
	// VisibilityPermissionEdit member may view and edit the item
	VisibilityPermissionEdit VisibilityPermissionENUMType = "EDIT"
)

// Item one typed secret item within a vault
type Item struct {
	// ID item ID
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required,uuid_rfc4122"`

	// VaultID the vault holding this item
	VaultID string `json:"vault_id" gorm:"column:vault_id;not null;index" validate:"required,uuid_rfc4122"`
	// CreatedByUserID the user who created the item
	CreatedByUserID string `json:"created_by_user_id" gorm:"column:created_by_user_id;not null" validate:"required"`

	// ItemType the item type. Decides which detail record holds the payload.
	ItemType ItemTypeENUMType `json:"item_type" gorm:"column:item_type;not null" validate:"required,item_type"`

	// Title item title
	Title string `json:"title" gorm:"column:title;not null" validate:"required"`
	// Description item description
	Description string `json:"description" gorm:"column:description"`

	// Status item status
	Status ItemStatusENUMType `json:"status" gorm:"column:status;not null" validate:"required,item_status"`
	// DeletedAt soft-delete timestamp. Set only when Status is DELETED.
	DeletedAt *time.Time `json:"deleted_at,omitempty" gorm:"column:deleted_at;default:null"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// ItemVisibility one member's permission on one item
//
// A row existing is the only source of truth for whether the member can see
// the item at all. The vault owner is implicit and never stored here.
type ItemVisibility struct {
	// ID visibility entry ID
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required"`

	// ItemID the item
	ItemID string `json:"item_id" gorm:"column:item_id;not null;index:idx_visibility_item_member,unique" validate:"required,uuid_rfc4122"`
	// MemberID the member entry granted access
	MemberID string `json:"member_id" gorm:"column:member_id;not null;index:idx_visibility_item_member,unique" validate:"required,uuid_rfc4122"`

	// Permission the granted permission
	Permission VisibilityPermissionENUMType `json:"permission" gorm:"column:permission;not null" validate:"required,visibility_permission"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// ItemDetail the encrypted type-specific payload of an item. One per item.
type ItemDetail struct {
	// ID detail entry ID
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required"`

	// ItemID the parent item
	ItemID string `json:"item_id" gorm:"column:item_id;not null;unique" validate:"required,uuid_rfc4122"`

	// EncPayload the symmetrically encrypted, JSON-serialized typed payload
	EncPayload []byte `json:"enc_payload" gorm:"column:enc_payload;not null" validate:"required"`
	// EncNonce the encryption nonce used
	EncNonce []byte `json:"enc_nonce" gorm:"column:enc_nonce;not null" validate:"required"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// PasswordPayload payload of a PASSWORD item
type PasswordPayload struct {
	// Username the account username
	Username string `json:"username"`
	// Password the account password
	Password string `json:"password" validate:"required"`
	// URL where the credential applies
	URL string `json:"url,omitempty"`
	// Notes free-form notes
	Notes string `json:"notes,omitempty"`
}

// NotePayload payload of a NOTE item
type NotePayload struct {
	// Content the note body
	Content string `json:"content" validate:"required"`
	// Format the note body format, e.g. plain or markdown
	Format string `json:"format,omitempty"`
}

// LinkPayload payload of a LINK item
type LinkPayload struct {
	// URL the stored link
	URL string `json:"url" validate:"required,url"`
	// Notes free-form notes
	Notes string `json:"notes,omitempty"`
}

// CryptoWalletPayload payload of a CRYPTO_WALLET item
type CryptoWalletPayload struct {
	// WalletType the wallet type
	WalletType string `json:"wallet_type,omitempty"`
	// Platform the wallet platform
	Platform string `json:"platform,omitempty"`
	// Blockchain the blockchain name
	Blockchain string `json:"blockchain,omitempty"`
	// Address the wallet address
	Address string `json:"address,omitempty"`
	// Secret the wallet secret or seed phrase
	Secret string `json:"secret" validate:"required"`
	// Notes free-form notes
	Notes string `json:"notes,omitempty"`
}

// DocumentPayload payload of a DOCUMENT item. The blob itself lives in
// external object storage; only the reference and metadata are kept here.
type DocumentPayload struct {
	// StorageKey object storage key of the blob
	StorageKey string `json:"storage_key" validate:"required"`
	// FileName original file name
	FileName string `json:"file_name" validate:"required"`
	// ContentType MIME type of the blob
	ContentType string `json:"content_type,omitempty"`
	// SizeBytes blob size in bytes
	SizeBytes int64 `json:"size_bytes,omitempty"`
}

/*
MarshalItemPayload serialize a typed item payload for encryption

	@param itemType ItemTypeENUMType - the item type
	@param payload interface{} - the typed payload
	@return the serialized payload
*/
func MarshalItemPayload(itemType ItemTypeENUMType, payload interface{}) ([]byte, error) {
	matched := false
	switch payload.(type) {
	case PasswordPayload:
		matched = itemType == ItemTypePassword
	case NotePayload:
		matched = itemType == ItemTypeNote
	case LinkPayload:
		matched = itemType == ItemTypeLink
	case CryptoWalletPayload:
		matched = itemType == ItemTypeCryptoWallet
	case DocumentPayload:
		matched = itemType == ItemTypeDocument
	}
	if !matched {
		return nil, fmt.Errorf("payload %T does not match item type '%s'", payload, itemType)
	}
	return json.Marshal(payload)
}

/*
UnmarshalItemPayload parse a decrypted item payload based on the item type

	@param itemType ItemTypeENUMType - the item type
	@param raw []byte - the decrypted serialized payload
	@return the typed payload
*/
func UnmarshalItemPayload(itemType ItemTypeENUMType, raw []byte) (interface{}, error) {
	switch itemType {
	case ItemTypePassword:
		var parsed PasswordPayload
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, fmt.Errorf("item payload of type '%s' parse failed [%w]", itemType, err)
		}
		return parsed, nil

	case ItemTypeNote:
		var parsed NotePayload
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, fmt.Errorf("item payload of type '%s' parse failed [%w]", itemType, err)
		}
		return parsed, nil

	case ItemTypeLink:
		var parsed LinkPayload
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, fmt.Errorf("item payload of type '%s' parse failed [%w]", itemType, err)
		}
		return parsed, nil

	case ItemTypeCryptoWallet:
		var parsed CryptoWalletPayload
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, fmt.Errorf("item payload of type '%s' parse failed [%w]", itemType, err)
		}
		return parsed, nil

	case ItemTypeDocument:
		var parsed DocumentPayload
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, fmt.Errorf("item payload of type '%s' parse failed [%w]", itemType, err)
		}
		return parsed, nil
	}

	return nil, fmt.Errorf("unknown item type '%s'", itemType)
}
