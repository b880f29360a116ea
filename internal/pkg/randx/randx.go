/*
Package randx provides functions for generating cryptographically secure random
identifiers and tokens.

It is primarily used to generate opaque Base62 session tokens and standard UUID
entity identifiers.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// SessionTokenLength is the fixed length of a session token. 43 Base62
	// characters carry slightly more than 256 bits of entropy.
	SessionTokenLength = 43
)

// SessionToken generates an opaque bearer token using a cryptographically secure
// random number generator (crypto/rand). The token is never derived from user
// identity or time, so it cannot be predicted by a client.
func SessionToken() (string, error) {
	result := make([]byte, SessionTokenLength)

	for i := 0; i < SessionTokenLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number for session token: %v", err)
		}

		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// NewID generates a standard UUID v4 string to serve as a unique identifier
// for users, conversations, and messages.
func NewID() string {
	return uuid.New().String()
}
