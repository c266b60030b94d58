package portal

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodeDataURL decodes a base64 data URL produced by the in-page fetch script.
// Results starting with "ERRO:" are reported as download failures.
func DecodeDataURL(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty fetch result", ErrDownload)
	}
	if strings.HasPrefix(s, "ERRO") {
		return nil, fmt.Errorf("%w: %s", ErrDownload, s)
	}
	if !strings.HasPrefix(s, "data:") {
		return nil, fmt.Errorf("%w: fetch result is not a data url", ErrDownload)
	}
	meta, payload, ok := strings.Cut(s, ",")
	if !ok {
		return nil, fmt.Errorf("%w: data url has no payload", ErrDownload)
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("%w: data url is not base64", ErrDownload)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: decode base64: %v", ErrDownload, err)
	}
	return data, nil
}
