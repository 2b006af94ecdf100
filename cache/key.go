package cache

import (
	"fmt"
	"strings"
)

// CreateKey joins the stringified parts with ":" to form a cache key.
// Nil parts are skipped; booleans and numbers render as their literal text.
// Zero parts yields the empty string.
func CreateKey(parts ...any) string {
	rendered := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == nil {
			continue
		}
		rendered = append(rendered, fmt.Sprint(part))
	}

	return strings.Join(rendered, ":")
}
