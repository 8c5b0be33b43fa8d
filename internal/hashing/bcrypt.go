// Package hashing produces and recognises the bcrypt hashes stored in the
// credential field of user records.
package hashing

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Marker prefixes every hash this package emits. A credential starting with
// it is treated as already hashed and is never hashed again.
const Marker = "$2b$"

// DefaultCost is the work factor user records are migrated with.
const DefaultCost = 10

// Hasher turns a plaintext credential into its stored form.
type Hasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
}

// BcryptHasher is a Hasher backed by golang.org/x/crypto/bcrypt.
type BcryptHasher struct {
	Cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	return &BcryptHasher{Cost: cost}
}

// Hash returns the bcrypt hash of plaintext in "$2b$" form. x/crypto encodes
// the same algorithm with the "$2a$" minor version, which the applications
// reading these records would not recognise as migrated.
//
// Plaintexts longer than 72 bytes fail with bcrypt.ErrPasswordTooLong.
func (h *BcryptHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	cost := h.Cost
	if cost == 0 {
		cost = DefaultCost
	}

	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", err
	}
	if len(b) > 3 && b[0] == '$' && b[1] == '2' && b[2] == 'a' {
		b[2] = 'b'
	}
	return string(b), nil
}

// IsHashed reports whether credential already carries the bcrypt marker.
func IsHashed(credential string) bool {
	return strings.HasPrefix(credential, Marker)
}

// Verify reports whether plaintext matches hash.
func Verify(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
