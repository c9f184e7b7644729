// Package fingerprint turns raw error text into a stable structural identity.
//
// Error messages arriving from different machines describe the same root cause
// with different paths, line numbers, addresses and identifiers. Normalize
// strips that noise with a fixed substitution pipeline so that two reports of
// the same failure hash to the same value. The hash is the deduplication key
// for the whole bug corpus, so the pipeline order and placeholder spellings
// must never change once data exists.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// Substitution patterns. Order matters: paths must be erased before line/col
// locators, and the traceback rewrite runs after both so it only normalizes
// whatever shape survived the earlier passes.
var (
	ansiEscape    = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)
	timestamps    = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:?\d{2})?`)
	uuids         = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	memoryAddrs   = regexp.MustCompile(`0x[0-9a-fA-F]{4,16}`)
	paths         = regexp.MustCompile(`(/[a-zA-Z0-9_./-]+|[A-Z]:\\[a-zA-Z0-9_.\\ -]+|~/[a-zA-Z0-9_./-]+)`)
	lineCols      = regexp.MustCompile(`(?i)(line |ln |:)\d+(:\d+)?`)
	tracebackFile = regexp.MustCompile(`File "[^"]+", line \d+`)
	stackFrames   = regexp.MustCompile(`(?m)^\s+at .+$`)
	quotedIdents  = regexp.MustCompile(`'[a-zA-Z_]\w*'`)
	numerics      = regexp.MustCompile(`\b\d{3,}\b`)
	whitespace    = regexp.MustCompile(`\s+`)
)

// Normalize strips environment-specific noise from raw error text while
// preserving its structural meaning.
func Normalize(raw string) string {
	text := strings.TrimSpace(raw)
	text = ansiEscape.ReplaceAllString(text, "")
	text = timestamps.ReplaceAllString(text, "<TIMESTAMP>")
	text = uuids.ReplaceAllString(text, "<UUID>")
	text = memoryAddrs.ReplaceAllString(text, "<ADDR>")
	text = paths.ReplaceAllString(text, "<PATH>")
	text = lineCols.ReplaceAllString(text, "<LOC>")
	text = tracebackFile.ReplaceAllString(text, `File "<PATH>", <LOC>`)
	text = stackFrames.ReplaceAllString(text, "  at <FRAME>")
	text = quotedIdents.ReplaceAllString(text, "<VAR>")
	text = numerics.ReplaceAllString(text, "<NUM>")
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Hash returns the SHA-256 hex digest of normalized error text.
func Hash(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Fingerprint returns the normalized form of raw error text together with its
// structural hash.
func Fingerprint(raw string) (normalized, structuralHash string) {
	normalized = Normalize(raw)
	return normalized, Hash(normalized)
}
