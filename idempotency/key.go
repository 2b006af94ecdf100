package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/google/uuid"
)

// GenerateKey returns a fresh random opaque idempotency key.
func GenerateKey() string {
	return uuid.NewString()
}

// CreateKey derives a deterministic idempotency key from an operation name
// and its parameters. Identical (operation, params) always yield the same key
// regardless of map insertion order; any change to the operation or a
// parameter value changes the key. The operation name stays in the key for
// debuggability.
// Format: idem:<operation>:<hash> where hash is the first 16 hex characters
// of SHA-256 over the operation and the canonical JSON of params.
func CreateKey(operation string, params map[string]any) string {
	canonical := canonicalize(params)

	h := sha256.New()
	h.Write([]byte(operation))
	h.Write([]byte{':'})
	h.Write(canonical)

	return "idem:" + operation + ":" + hex.EncodeToString(h.Sum(nil)[:8])
}

// canonicalize produces a deterministic JSON representation: maps are
// serialized with sorted keys at every level.
func canonicalize(v any) []byte {
	switch val := v.(type) {
	case nil:
		return []byte("null")
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return []byte("null")
		}
		return encoded
	}
}

func canonicalizeMap(m map[string]any) []byte {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}

		keyBytes, err := json.Marshal(k)
		if err != nil {
			continue
		}
		result = append(result, keyBytes...)
		result = append(result, ':')
		result = append(result, canonicalize(m[k])...)
	}

	return append(result, '}')
}

func canonicalizeSlice(s []any) []byte {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}
		result = append(result, canonicalize(v)...)
	}

	return append(result, ']')
}
