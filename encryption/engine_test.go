package encryption_test

import (
	"context"
	"testing"

	cgoCrypto "github.com/alwitt/cgoutils/crypto"
	"github.com/alwitt/covault/encryption"
	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func utServerSecret(t *testing.T) []byte {
	coreCrypto, err := cgoCrypto.NewEngine(log.Fields{
		"package": "cgoutils", "module": "crypto", "component": "crypto-engine",
	})
	assert.Nil(t, err)
	secret := make([]byte, 48)
	read, err := coreCrypto.GetRNGReader().Read(secret)
	assert.Nil(t, err)
	assert.Equal(t, len(secret), read)
	return secret
}

func TestCipherEngineInit(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	// Case 0: no server secret
	{
		_, err := encryption.NewCipherEngine(utCtx, encryption.CipherEngineParams{})
		assert.Error(err)
	}

	// Case 1: server secret too short
	{
		_, err := encryption.NewCipherEngine(utCtx, encryption.CipherEngineParams{
			ServerSecret: []byte("too-short"),
		})
		assert.Error(err)
	}

	// Case 2: with a proper server secret
	{
		uut, err := encryption.NewCipherEngine(utCtx, encryption.CipherEngineParams{
			ServerSecret: utServerSecret(t),
		})
		assert.Nil(err)
		assert.NotEmpty(uut.SecretFingerprint())
	}
}

func TestCipherEngineKeyDerivation(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	secretOne := utServerSecret(t)
	secretTwo := utServerSecret(t)

	uut1, err := encryption.NewCipherEngine(utCtx, encryption.CipherEngineParams{
		ServerSecret: secretOne,
	})
	assert.Nil(err)
	uut2, err := encryption.NewCipherEngine(utCtx, encryption.CipherEngineParams{
		ServerSecret: secretOne,
	})
	assert.Nil(err)
	uut3, err := encryption.NewCipherEngine(utCtx, encryption.CipherEngineParams{
		ServerSecret: secretTwo,
	})
	assert.Nil(err)

	vaultID := uuid.NewString()
	ownerID := uuid.NewString()

	// Same inputs always derive the same key, even across engine instances
	keyA, err := uut1.DeriveVaultKey(utCtx, vaultID, ownerID)
	assert.Nil(err)
	keyB, err := uut1.DeriveVaultKey(utCtx, vaultID, ownerID)
	assert.Nil(err)
	keyC, err := uut2.DeriveVaultKey(utCtx, vaultID, ownerID)
	assert.Nil(err)
	assert.Equal(keyA, keyB)
	assert.Equal(keyA, keyC)

	// A different owner derives a different key
	keyD, err := uut1.DeriveVaultKey(utCtx, vaultID, uuid.NewString())
	assert.Nil(err)
	assert.NotEqual(keyA, keyD)

	// A different vault derives a different key
	keyE, err := uut1.DeriveVaultKey(utCtx, uuid.NewString(), ownerID)
	assert.Nil(err)
	assert.NotEqual(keyA, keyE)

	// A different server secret derives a different key
	keyF, err := uut3.DeriveVaultKey(utCtx, vaultID, ownerID)
	assert.Nil(err)
	assert.NotEqual(keyA, keyF)

	// Distinct fingerprints per server secret
	assert.Equal(uut1.SecretFingerprint(), uut2.SecretFingerprint())
	assert.NotEqual(uut1.SecretFingerprint(), uut3.SecretFingerprint())
}

func TestCipherEngineEncryptDecrypt(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	uut, err := encryption.NewCipherEngine(utCtx, encryption.CipherEngineParams{
		ServerSecret: utServerSecret(t),
	})
	assert.Nil(err)

	key, err := uut.DeriveVaultKey(utCtx, uuid.NewString(), uuid.NewString())
	assert.Nil(err)

	plainText := []byte(`{"username":"someone","password":"hunter2"}`)

	// Encrypt, then decrypt with the same key
	encrypted, err := uut.Encrypt(utCtx, key, plainText)
	assert.Nil(err)
	assert.NotEqual(plainText, encrypted.CipherText)
	assert.NotEmpty(encrypted.Nonce)

	decrypted, err := uut.Decrypt(utCtx, key, encrypted)
	assert.Nil(err)
	assert.Equal(plainText, decrypted)

	// Two encryptions of the same plain text use different nonces
	encryptedAgain, err := uut.Encrypt(utCtx, key, plainText)
	assert.Nil(err)
	assert.NotEqual(encrypted.Nonce, encryptedAgain.Nonce)

	// Decrypting with the wrong key fails
	wrongKey, err := uut.DeriveVaultKey(utCtx, uuid.NewString(), uuid.NewString())
	assert.Nil(err)
	_, err = uut.Decrypt(utCtx, wrongKey, encrypted)
	assert.Error(err)
}

func TestCipherEngineInviteToken(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	uut, err := encryption.NewCipherEngine(utCtx, encryption.CipherEngineParams{
		ServerSecret: utServerSecret(t),
	})
	assert.Nil(err)

	tokenOne, hashOne, err := uut.NewInviteToken(utCtx)
	assert.Nil(err)
	assert.NotEmpty(tokenOne)
	assert.Equal(encryption.HashInviteToken(tokenOne), hashOne)

	tokenTwo, hashTwo, err := uut.NewInviteToken(utCtx)
	assert.Nil(err)
	assert.NotEqual(tokenOne, tokenTwo)
	assert.NotEqual(hashOne, hashTwo)
}
