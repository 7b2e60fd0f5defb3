package storage

import (
	"encoding/base64"
	"strings"
)

// ParseDataURI decodes an RFC 2397 style inline image of the form
// "data:<mediatype>;base64,<payload>". ok is false for anything else,
// including plain URLs, which callers store as-is.
func ParseDataURI(uri string) (contentType string, data []byte, ok bool) {
	if !strings.HasPrefix(uri, "data:") {
		return "", nil, false
	}
	meta, payload, found := strings.Cut(uri[len("data:"):], ",")
	if !found {
		return "", nil, false
	}

	encoding := ""
	if idx := strings.LastIndex(meta, ";"); idx >= 0 {
		encoding = meta[idx+1:]
		meta = meta[:idx]
	}
	if !strings.EqualFold(encoding, "base64") {
		return "", nil, false
	}

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, false
	}
	return meta, decoded, true
}
