package schema

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"
)

var featPattern = regexp.MustCompile(`(?i)\s*(?:feat\.|ft\.)\s*`)

// StableKey derives the 16-hex-char content key used for per-engine
// duplicate suppression. It is a pure function of (title, url): two results
// with the same title and URL always share a key.
func StableKey(title, url string) string {
	sum := md5.Sum([]byte(title + url))
	return hex.EncodeToString(sum[:])[:16]
}

// NormalizeName lowercases, strips feat./ft. markers and collapses
// whitespace. Used for unified-ID derivation only; display fields keep
// their original casing.
func NormalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = featPattern.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// UnifiedID derives the 12-hex cross-source entity key from a normalized
// (artist, title) pair. Pure: equal normalized pairs yield equal IDs.
func UnifiedID(artist, title string) string {
	normalized := NormalizeName(artist) + ":" + NormalizeName(title)
	sum := md5.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])[:12]
}
