package encryption

import (
	"context"
	"encoding/base64"
	"fmt"
)

// inviteTokenLen raw byte length of an invite bearer token
const inviteTokenLen = 32

/*
NewInviteToken generate a fresh invite bearer token

	@param ctx context.Context - execution context
	@returns the token and its one-way hash
*/
func (e *cipherEngine) NewInviteToken(_ context.Context) (string, string, error) {
	rng := e.crypto.GetRNGReader()

	raw := make([]byte, inviteTokenLen)
	if n, err := rng.Read(raw); err != nil {
		return "", "", fmt.Errorf(
			"failed to read %d bytes from RNG [%w]", inviteTokenLen, err,
		)
	} else if n != inviteTokenLen {
		return "", "", fmt.Errorf(
			"did not get %d bytes from RNG, only %d", inviteTokenLen, n,
		)
	}

	token := base64.RawURLEncoding.EncodeToString(raw)
	return token, HashInviteToken(token), nil
}
