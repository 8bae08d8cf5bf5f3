// Package codec decodes the opaque byte tokens carried by indexer records
// into offer prices and human-readable settlement addresses.
package codec

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodeBytes decodes a base64 token. Both padded and unpadded forms are
// accepted since indexers differ on which one they emit.
func DecodeBytes(token string) ([]byte, error) {
	token = strings.TrimSpace(token)
	if strings.HasSuffix(token, "=") || len(token)%4 == 0 {
		b, err := base64.StdEncoding.DecodeString(token)
		if err != nil {
			return nil, fmt.Errorf("codec: decode bytes: %w", err)
		}
		return b, nil
	}
	b, err := base64.RawStdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("codec: decode bytes: %w", err)
	}
	return b, nil
}
