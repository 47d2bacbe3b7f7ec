package ir

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainNameLocation = "harvest/identity/nm/v1"
	DomainContent      = "harvest/identity/h/v1"
	DomainNamespace    = "harvest/namespace/v1"
)

// HashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data), hex encoded.
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ShortHash returns the first n hex characters of HashWithDomain.
// n is clamped to the full digest length.
func ShortHash(domain string, data []byte, n int) string {
	full := HashWithDomain(domain, data)
	if n <= 0 || n > len(full) {
		return full
	}
	return full[:n]
}
