package models

import (
	"strconv"
	"strings"
)

// MetadataFromPairs parses "name=value" strings into a metadata map.
// Values that parse as numbers or booleans keep that type.
func MetadataFromPairs(pairs []string) (map[string]any, error) {
	md := make(map[string]any, len(pairs))
	for _, item := range pairs {
		name, value, ok := strings.Cut(item, "=")
		if !ok || name == "" || strings.Contains(value, "=") {
			return nil, ErrIncorrectPair
		}
		md[name] = parseScalar(value)
	}
	return md, nil
}

func parseScalar(s string) any {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}
