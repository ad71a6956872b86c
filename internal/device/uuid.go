package device

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Bluetooth SIG base UUID suffix: 0000xxxx-0000-1000-8000-00805f9b34fb
const sigBaseSuffix = "00001000800000805f9b34fb"

// ParseUUID validates a characteristic or service UUID and returns its normalized form.
//
// Accepted inputs are 16-bit ("2a19", "0x2A19"), 32-bit ("0000180d") and 128-bit
// UUIDs, dashed or not, optionally braced. The normalized form is lowercase without
// dashes. 32-bit UUIDs are expanded on the Bluetooth SIG base, and SIG-base UUIDs with
// a zero high half collapse to their 16-bit form.
func ParseUUID(s string) (string, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUUID)
	}

	short := strings.TrimPrefix(strings.ToLower(raw), "0x")
	switch len(short) {
	case 4:
		if _, err := hex.DecodeString(short); err != nil {
			return "", fmt.Errorf("%w: %q: %v", ErrInvalidUUID, s, err)
		}
		return short, nil
	case 8:
		// 32-bit UUIDs expand on the SIG base, so they match their 128-bit spelling
		raw = short + sigBaseSuffix
	}

	u, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidUUID, s, err)
	}
	full := hex.EncodeToString(u[:])
	if strings.HasPrefix(full, "0000") && strings.HasSuffix(full, sigBaseSuffix) {
		return full[4:8], nil
	}
	return full, nil
}

// NormalizeUUID is ParseUUID without the error: invalid input yields "".
func NormalizeUUID(s string) string {
	n, err := ParseUUID(s)
	if err != nil {
		return ""
	}
	return n
}

// NormalizeUUIDs normalizes every UUID, dropping invalid ones.
func NormalizeUUIDs(uuids []string) []string {
	out := make([]string, 0, len(uuids))
	for _, u := range uuids {
		if n := NormalizeUUID(u); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// FullUUID expands a UUID to its canonical dashed 128-bit form,
// e.g. "2a19" -> "00002a19-0000-1000-8000-00805f9b34fb".
// Input that cannot be parsed is returned unchanged.
func FullUUID(s string) string {
	n, err := ParseUUID(s)
	if err != nil {
		return s
	}

	var full string
	switch len(n) {
	case 4:
		full = "0000" + n + sigBaseSuffix
	default:
		full = n
	}

	u, err := uuid.Parse(full)
	if err != nil {
		return s
	}
	return u.String()
}

// ShortenUUID returns a truncated version of a UUID for display purposes.
// Returns the first eight characters for long UUIDs and short UUIDs by themselves.
func ShortenUUID(u string) string {
	if len(u) > 8 {
		return u[:8]
	}
	return u
}
