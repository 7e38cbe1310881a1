package pairkey

import (
	"errors"
	"strings"
)

var (
	ErrEmptyID  = errors.New("empty user id")
	ErrSameUser = errors.New("a conversation requires two distinct users")
)

// Canonicalize orders two user ids so that the same pair always produces the
// same key regardless of argument order. Ids are compared bytewise, which is
// stable for any opaque identifier scheme.
func Canonicalize(idA, idB string) (string, string, error) {
	idA = strings.TrimSpace(idA)
	idB = strings.TrimSpace(idB)

	if idA == "" || idB == "" {
		return "", "", ErrEmptyID
	}
	if idA == idB {
		return "", "", ErrSameUser
	}

	if idB < idA {
		idA, idB = idB, idA
	}
	return idA, idB, nil
}
