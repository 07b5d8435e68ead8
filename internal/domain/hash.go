package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests. The version suffix leaves room for
// changing the record layout without colliding with old digests.
const (
	DigestStream = "fluxora/stream/v1"
	DigestEvent  = "fluxora/event/v1"
)

// hashWithDomain computes SHA256(domain || 0x00 || data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// StreamDigest returns a content digest of the full stream record. Two
// records have equal digests exactly when every field is equal, which is what
// replay verification compares.
func StreamDigest(s Stream) (string, error) {
	canonical, err := MarshalCanonical(StreamObject(s))
	if err != nil {
		return "", fmt.Errorf("StreamDigest: %w", err)
	}
	return hashWithDomain(DigestStream, canonical), nil
}

// EventDigest returns a content digest of the event body. Log-assigned
// fields (ID, Seq) are excluded so the digest is stable across logs.
func EventDigest(ev Event) (string, error) {
	obj := map[string]any{
		"topic":     ev.Topic,
		"stream_id": ev.StreamID,
		"time":      ev.Time,
		"actor":     ev.Actor,
		"amount":    ev.Amount,
	}
	if ev.Stream != nil {
		obj["stream"] = StreamObject(*ev.Stream)
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EventDigest: %w", err)
	}
	return hashWithDomain(DigestEvent, canonical), nil
}
