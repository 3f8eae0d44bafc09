// Package fingerprint derives stable identifiers for the logical shape of a
// SQL statement, invariant to the literal values embedded in it.
package fingerprint

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
)

var (
	// Single-quoted string literals, handling doubled and backslash escapes.
	stringLiteralRe = regexp.MustCompile(`'(?:[^'\\]|\\.|'')*'`)
	// Free-standing numeric literals. Digits embedded in identifiers such as
	// "t1" have no word boundary in front of them and are left alone.
	numberLiteralRe = regexp.MustCompile(`\b\d+(?:\.\d+)?(?:[eE][+-]?\d+)?\b`)
	// IN lists whose every element has already been masked.
	inListRe     = regexp.MustCompile(`(?i)\bIN\s*\(\s*(?:\?|'\?')(?:\s*,\s*(?:\?|'\?'))*\s*\)`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Normalize rewrites sql so that texts differing only in literal values
// become identical. The pipeline order is fixed: string literals, numeric
// literals, IN-list collapse, lower-casing, terminator strip, whitespace.
// Normalize is idempotent.
func Normalize(sql string) string {
	s := stringLiteralRe.ReplaceAllString(sql, "'?'")
	s = numberLiteralRe.ReplaceAllString(s, "?")
	s = inListRe.ReplaceAllString(s, "IN (?)")
	s = strings.ToLower(s)
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ";")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Fingerprint returns the pattern id for sql: a 64-bit xxhash of the
// normalized text rendered as 16 hex digits. Equal inputs yield equal
// output. Callers on hot paths should memoize by raw text via Cache.
func Fingerprint(sql string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(Normalize(sql)))
}

// Cache memoizes fingerprints by raw query text. It is meant to be owned by
// a single builder invocation, never shared across windows, so repeated raw
// texts skip renormalization without the map outliving the call.
type Cache struct {
	byRaw map[string]string
}

// NewCache returns an empty fingerprint cache.
func NewCache() *Cache {
	return &Cache{byRaw: make(map[string]string)}
}

// Fingerprint returns the memoized pattern id for sql.
func (c *Cache) Fingerprint(sql string) string {
	if fp, ok := c.byRaw[sql]; ok {
		return fp
	}
	fp := Fingerprint(sql)
	c.byRaw[sql] = fp
	return fp
}

// Len reports how many distinct raw texts the cache has seen.
func (c *Cache) Len() int {
	return len(c.byRaw)
}
