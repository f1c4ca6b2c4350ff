package utils

import (
	"crypto/md5"
	"crypto/sha256"
	"fmt"
)

// HashString returns the hex md5 of the input. Used for cache key
// derivation, not for anything security sensitive.
func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// Fingerprint returns the hex sha256 of a document's content, used to
// detect duplicate ingestion within a tenant.
func Fingerprint(content string) string {
	hash := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", hash)
}
