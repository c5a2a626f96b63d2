// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package policy

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// HashSecret returns the upper-case hex SHA-256 of secret, the format stored
// in adminPasswordHash.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// MatchSecret reports whether secret hashes to storedHash. The comparison is
// byte for byte, so a lower-case stored hash never matches.
func MatchSecret(secret, storedHash string) bool {
	if storedHash == "" {
		return false
	}
	computed := HashSecret(secret)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}
