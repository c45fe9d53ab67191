package models

import (
	"reflect"

	"github.com/go-playground/validator/v10"
)

/*
RegisterWithValidator register with the validator this custom validation support

	@param v *validator.Validate - the validator to register against
	@return whether successful
*/
func RegisterWithValidator(v *validator.Validate) error {
	customValidators := map[string]validator.Func{
		"system_state":          validateSystemStateType,
		"vault_status":          validateVaultStatusType,
		"policy_type":           validatePolicyType,
		"release_status":        validateReleaseStatusType,
		"member_privilege":      validateMemberPrivilegeType,
		"member_status":         validateMemberStatusType,
		"invite_status":         validateInviteStatusType,
		"item_type":             validateItemType,
		"item_status":           validateItemStatusType,
		"visibility_permission": validateVisibilityPermissionType,
		"vault_event_type":      validateVaultEventType,
	}

	for name, checker := range customValidators {
		if err := v.RegisterValidation(name, checker); err != nil {
			return err
		}
	}

	return nil
}

func validateSystemStateType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch SystemStateENUMType(fl.Field().String()) {
	case SystemStatePreInit:
		fallthrough
	case SystemStateInit:
		fallthrough
	case SystemStateRunning:
		return true
	}
	return false
}

func validateVaultStatusType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch VaultStatusENUMType(fl.Field().String()) {
	case VaultStatusActive:
		fallthrough
	case VaultStatusDeleted:
		return true
	}
	return false
}

func validatePolicyType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch PolicyTypeENUMType(fl.Field().String()) {
	case PolicyTypeImmediate:
		fallthrough
	case PolicyTypeTimeBased:
		fallthrough
	case PolicyTypeExpiryBased:
		fallthrough
	case PolicyTypeManualRelease:
		return true
	}
	return false
}

func validateReleaseStatusType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch ReleaseStatusENUMType(fl.Field().String()) {
	case ReleaseStatusPending:
		fallthrough
	case ReleaseStatusReleased:
		fallthrough
	case ReleaseStatusExpired:
		fallthrough
	case ReleaseStatusRevoked:
		return true
	}
	return false
}

func validateMemberPrivilegeType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch MemberPrivilegeENUMType(fl.Field().String()) {
	case MemberPrivilegeOwner:
		fallthrough
	case MemberPrivilegeAdmin:
		fallthrough
	case MemberPrivilegeMember:
		return true
	}
	return false
}

func validateMemberStatusType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch MemberStatusENUMType(fl.Field().String()) {
	case MemberStatusActive:
		fallthrough
	case MemberStatusLeft:
		fallthrough
	case MemberStatusRemoved:
		return true
	}
	return false
}

func validateInviteStatusType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch InviteStatusENUMType(fl.Field().String()) {
	case InviteStatusPending:
		fallthrough
	case InviteStatusSent:
		fallthrough
	case InviteStatusAccepted:
		fallthrough
	case InviteStatusCancelled:
		fallthrough
	case InviteStatusExpired:
		return true
	}
	return false
}

func validateItemType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch ItemTypeENUMType(fl.Field().String()) {
	case ItemTypePassword:
		fallthrough
	case ItemTypeNote:
		fallthrough
	case ItemTypeLink:
		fallthrough
	case ItemTypeCryptoWallet:
		fallthrough
	case ItemTypeDocument:
		return true
	}
	return false
}

func validateItemStatusType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch ItemStatusENUMType(fl.Field().String()) {
	case ItemStatusActive:
		fallthrough
	case ItemStatusDeleted:
		return true
	}
	return false
}

func validateVisibilityPermissionType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch VisibilityPermissionENUMType(fl.Field().String()) {
	case VisibilityPermissionView:
		fallthrough
	case VisibilityPermissionEdit:
		return true
	}
	return false
}

func validateVaultEventType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch VaultEventTypeENUMType(fl.Field().String()) {
	case VaultEventTypeVaultCreate:
		fallthrough
	case VaultEventTypeVaultUpdate:
		fallthrough
	case VaultEventTypeVaultDelete:
		fallthrough
	case VaultEventTypeVaultRestore:
		fallthrough
	case VaultEventTypePolicyUpdate:
		fallthrough
	case VaultEventTypePolicyRelease:
		fallthrough
	case VaultEventTypePolicyExpire:
		fallthrough
	case VaultEventTypePolicyRevoke:
		fallthrough
	case VaultEventTypeInviteCreate:
		fallthrough
	case VaultEventTypeInviteResend:
		fallthrough
	case VaultEventTypeInviteCancel:
		fallthrough
	case VaultEventTypeInviteExpire:
		fallthrough
	case VaultEventTypeInviteAccept:
		fallthrough
	case VaultEventTypeMemberPrivilegeChange:
		fallthrough
	case VaultEventTypeMemberRemove:
		fallthrough
	case VaultEventTypeMemberLeave:
		fallthrough
	case VaultEventTypeOwnershipTransfer:
		fallthrough
	case VaultEventTypeItemCreate:
		fallthrough
	case VaultEventTypeItemUpdate:
		fallthrough
	case VaultEventTypeItemDelete:
		fallthrough
	case VaultEventTypeItemRestore:
		fallthrough
	case VaultEventTypeVisibilityReplace:
		fallthrough
	case VaultEventTypeAccountPurge:
		return true
	}
	return false
}
