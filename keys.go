package gostashsquirrel

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// maxKeyLength is the longest derived key stored verbatim; anything longer
// collapses to a digest so backends with key-size limits stay usable.
const maxKeyLength = 200

// BuildKey derives a cache key from a function identity and its arguments:
// prefix, name, each positional argument and each keyword argument (sorted by
// name) joined by ":". Keys longer than 200 characters are replaced by
// "hashed:" plus the md5 hex digest of the full key.
func BuildKey(prefix, name string, args []any, kwargs map[string]any) string {
	parts := make([]string, 0, 2+len(args)+len(kwargs))
	if prefix != "" {
		parts = append(parts, prefix)
	}
	parts = append(parts, name)
	for _, a := range args {
		parts = append(parts, fmt.Sprintf("%v", a))
	}

	names := make([]string, 0, len(kwargs))
	for k := range kwargs {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		parts = append(parts, fmt.Sprintf("%s=%v", k, kwargs[k]))
	}

	key := strings.Join(parts, ":")
	if len(key) > maxKeyLength {
		sum := md5.Sum([]byte(key))
		return "hashed:" + hex.EncodeToString(sum[:])
	}
	return key
}
