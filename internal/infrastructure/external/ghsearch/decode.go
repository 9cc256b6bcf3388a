package ghsearch

import (
	"encoding/base64"
	"fmt"
)

// decodeReadmeContent decodes the base64-wrapped README body the contents
// API returns. GitHub's API wraps the base64 payload with newlines; CR and
// LF bytes are stripped before the payload is decoded with StdEncoding.
func decodeReadmeContent(r readmeResponse) (string, error) {
	if r.Encoding != "base64" {
		return r.Content, nil
	}

	cleaned := make([]byte, 0, len(r.Content))
	for _, b := range []byte(r.Content) {
		if b == '\n' || b == '\r' {
			continue
		}
		cleaned = append(cleaned, b)
	}

	decoded, err := base64.StdEncoding.DecodeString(string(cleaned))
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	return string(decoded), nil
}
