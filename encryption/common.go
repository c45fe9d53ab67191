// Package encryption - data encryption processing engine
package encryption

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	cgoCrypto "github.com/alwitt/cgoutils/crypto"
	"github.com/alwitt/goutils"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
)

// EncryptedData one encrypted blob together with the nonce used to produce it
type EncryptedData struct {
	// CipherText the encrypted payload
	CipherText []byte
	// Nonce the nonce used for this encryption
	Nonce []byte
}

/*
CipherEngine the system's cryptography engine. It is solely responsible for all
cryptographic operations in the system.

Vault content keys are never stored. Each vault's symmetric key is derived
deterministically from the vault ID, the current owner's user ID, and the
server secret; transferring vault ownership therefore changes the key material.
*/
type CipherEngine interface {
	/*
		DeriveVaultKey derive the symmetric content key of a vault

			@param ctx context.Context - execution context
			@param vaultID string - vault ID
			@param ownerID string - the vault's current owner user ID
			@returns the symmetric key
	*/
	DeriveVaultKey(ctx context.Context, vaultID string, ownerID string) ([]byte, error)

	/*
		Encrypt encrypt plain text with a vault content key

			@param ctx context.Context - execution context
			@param key []byte - the symmetric key
			@param plainText []byte - the plain text to encrypt
			@returns the cipher text and nonce
	*/
	Encrypt(ctx context.Context, key []byte, plainText []byte) (EncryptedData, error)

	/*
		Decrypt decrypt cipher text with a vault content key

			@param ctx context.Context - execution context
			@param key []byte - the symmetric key
			@param encrypted EncryptedData - the cipher text and nonce
			@returns the plain text
	*/
	Decrypt(ctx context.Context, key []byte, encrypted EncryptedData) ([]byte, error)

	/*
		NewInviteToken generate a fresh invite bearer token

		The token itself is handed to the invitee exactly once; only the hash
		is ever persisted.

			@param ctx context.Context - execution context
			@returns the token and its one-way hash
	*/
	NewInviteToken(ctx context.Context) (string, string, error)

	/*
		SecretFingerprint one-way fingerprint of the server secret in use

			@returns the fingerprint
	*/
	SecretFingerprint() string
}

// cipherEngine implements CipherEngine
type cipherEngine struct {
	goutils.Component

	validator *validator.Validate

	crypto cgoCrypto.Engine

	serverSecret []byte

	keyCacheLock *sync.RWMutex
	vaultKeys    map[string][]byte
}

// CipherEngineParams cipher engine init parameters
type CipherEngineParams struct {
	// ServerSecret the server-side secret all vault content keys derive from
	ServerSecret []byte `validate:"required,min=32"`
}

/*
NewCipherEngine define new cipher engine

	@param ctx context.Context - execution context
	@param params CipherEngineParams - engine parameters
	@returns engine instance
*/
func NewCipherEngine(_ context.Context, params CipherEngineParams) (CipherEngine, error) {
	// Prepare core crypto engine
	engine, err := cgoCrypto.NewEngine(log.Fields{
		"package": "cgoutils", "module": "crypto", "component": "crypto-engine",
	})

	if err != nil {
		return nil, fmt.Errorf("failed to prepare core cryptography [%w]", err)
	}

	logTags := log.Fields{"module": "encryption", "component": "cipher-engine"}

	instance := &cipherEngine{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		validator:    validator.New(),
		crypto:       engine,
		serverSecret: params.ServerSecret,
		keyCacheLock: &sync.RWMutex{},
		vaultKeys:    make(map[string][]byte),
	}

	if err := instance.validator.Struct(&params); err != nil {
		return nil, fmt.Errorf("invalid engine init parameters [%w]", err)
	}

	return instance, nil
}

/*
SecretFingerprint one-way fingerprint of the server secret in use

	@returns the fingerprint
*/
func (e *cipherEngine) SecretFingerprint() string {
	digest := sha256.Sum256(e.serverSecret)
	return hex.EncodeToString(digest[:])
}

/*
HashInviteToken compute the one-way hash of an invite bearer token

	@param token string - the bearer token
	@returns the hash
*/
func HashInviteToken(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:])
}
