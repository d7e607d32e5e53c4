package query

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// keyScheme heads the canonical form. Bump it when the encoding changes;
// artifacts written under an older scheme are simply never hit again.
const keyScheme = "metrix/aggs/v1"

// KeyLen is the length of a Key in hex characters.
const KeyLen = sha256.Size * 2

// Key addresses the cached artifact of one Request.
type Key string

func (k Key) String() string { return string(k) }

// fields enumerates the request parameters explicitly, never via reflection.
func (r Request) fields() map[string]string {
	return map[string]string{
		"ticker":     strings.ToUpper(strings.TrimSpace(r.Ticker)),
		"multiplier": strconv.Itoa(r.Multiplier),
		"timespan":   r.Timespan.String(),
		"from":       r.From.String(),
		"to":         r.To.String(),
		"adjusted":   strconv.FormatBool(r.Adjusted),
		"sort":       r.Sort.String(),
		"limit":      strconv.Itoa(r.Limit),
	}
}

// Canonical returns the order-independent text the key is hashed from:
// the scheme line followed by name=value lines sorted by name.
func (r Request) Canonical() string {
	f := r.fields()
	names := make([]string, 0, len(f))
	for n := range f {
		names = append(names, n)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(keyScheme)
	for _, n := range names {
		b.WriteByte('\n')
		b.WriteString(n)
		b.WriteByte('=')
		b.WriteString(f[n])
	}
	return b.String()
}

// Key derives the cache key of r.
func (r Request) Key() Key {
	return Derive(r)
}

// Derive hashes the canonical form of r with SHA-256.
func Derive(r Request) Key {
	sum := sha256.Sum256([]byte(r.Canonical()))
	return Key(hex.EncodeToString(sum[:]))
}
