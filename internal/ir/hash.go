package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed digests.
// Version suffix enables future algorithm migration.
const (
	DomainMessage = "causeway/message/v1"
	DomainBatch   = "causeway/batch/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// MessageDigest is the content hash of one message, tag included.
func MessageDigest(m Message) string {
	canonical, err := MarshalCanonical(map[string]any{
		"payload": hex.EncodeToString(m.Payload),
		"tag":     m.Tag,
	})
	if err != nil {
		// Only strings are marshaled above.
		panic(fmt.Sprintf("MessageDigest: %v", err))
	}
	return hashWithDomain(DomainMessage, canonical)
}

// BatchDigest computes the content hash of a delivered batch.
//
// The digest covers the dots and message digests in order, so two runs that
// deliver the same operations in the same grouping and order produce the
// same digest regardless of batch numbering or run ID.
func BatchDigest(dots []Dot, messages []Message) (string, error) {
	if len(dots) != len(messages) {
		return "", fmt.Errorf("BatchDigest: %d dots but %d messages", len(dots), len(messages))
	}
	entries := make([]any, len(dots))
	for i, d := range dots {
		entries[i] = map[string]any{
			"replica": d.Replica,
			"seq":     d.Seq,
			"message": MessageDigest(messages[i]),
		}
	}
	canonical, err := MarshalCanonical(map[string]any{"entries": entries})
	if err != nil {
		return "", fmt.Errorf("BatchDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainBatch, canonical), nil
}

// MustBatchDigest is like BatchDigest but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustBatchDigest(dots []Dot, messages []Message) string {
	digest, err := BatchDigest(dots, messages)
	if err != nil {
		panic(err)
	}
	return digest
}
