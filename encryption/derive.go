package encryption

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"

	cgoCrypto "github.com/alwitt/cgoutils/crypto"
	"golang.org/x/crypto/hkdf"
)

// writeKeyToCache write a derived vault key into cache for reuse
func (e *cipherEngine) writeKeyToCache(cacheKey string, derived []byte) {
	e.keyCacheLock.Lock()
	defer e.keyCacheLock.Unlock()
	e.vaultKeys[cacheKey] = derived
}

// getCachedKey helper function to read a derived vault key from cache
func (e *cipherEngine) getCachedKey(cacheKey string) ([]byte, bool) {
	e.keyCacheLock.RLock()
	defer e.keyCacheLock.RUnlock()
	entry, ok := e.vaultKeys[cacheKey]
	return entry, ok
}

/*
DeriveVaultKey derive the symmetric content key of a vault

The derivation binds the key to both the vault and its current owner. The
cache is keyed the same way, so a key derived before an ownership transfer
never serves a vault after one.

	@param ctx context.Context - execution context
	@param vaultID string - vault ID
	@param ownerID string - the vault's current owner user ID
	@returns the symmetric key
*/
func (e *cipherEngine) DeriveVaultKey(
	ctx context.Context, vaultID string, ownerID string,
) ([]byte, error) {
	cacheKey := fmt.Sprintf("%s/%s", vaultID, ownerID)
	if cached, ok := e.getCachedKey(cacheKey); ok {
		return cached, nil
	}

	aead, err := e.crypto.GetAEAD(ctx, cgoCrypto.AEADTypeXChaCha20Poly1305)
	if err != nil {
		return nil, fmt.Errorf("unable to define AEAD client [%w]", err)
	}
	keyLen := aead.ExpectedKeyLen()

	info := fmt.Sprintf("covault/vault-key/%s/%s", vaultID, ownerID)
	reader := hkdf.New(sha256.New, e.serverSecret, nil, []byte(info))

	derived := make([]byte, keyLen)
	if _, err := io.ReadFull(reader, derived); err != nil {
		return nil, fmt.Errorf("failed to derive %d key bytes [%w]", keyLen, err)
	}

	e.writeKeyToCache(cacheKey, derived)

	return derived, nil
}
