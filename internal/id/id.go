// Package id generates prefixed identifiers for player sessions.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// PrefixSession marks player session IDs.
const PrefixSession = "ses"

// The alphabet omits look-alike characters (0/O, 1/l/I).
const (
	alphabet = "23456789abcdefghjkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ"
	size     = 12
)

// Generate creates an ID such as "ses-4kPq7ZxM2aRt".
func Generate(prefix string) (string, error) {
	id, err := gonanoid.Generate(alphabet, size)
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}
