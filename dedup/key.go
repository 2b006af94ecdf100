package dedup

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// CreateKey builds a deduplication key from an HTTP method, a path, and
// optional request parameters. Parameters are serialized as lexicographically
// key-sorted name=JSON(value) pairs, so insertion order never changes the key.
func CreateKey(method, path string, params map[string]any) string {
	key := strings.ToUpper(method) + ":" + path
	if len(params) == 0 {
		return key
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, name := range names {
		encoded, err := json.Marshal(params[name])
		if err != nil {
			pairs = append(pairs, name+"="+fmt.Sprint(params[name]))
			continue
		}
		pairs = append(pairs, name+"="+string(encoded))
	}

	return key + ":" + strings.Join(pairs, "&")
}
