package services

import (
	"bytes"
	"io"
	"strings"
	"time"
)

func bytesReader(data []byte) io.Reader {
	return bytes.NewReader(data)
}

// basketOfKey recovers the basket name from a storage key, the inverse of
// StorageKey.
func basketOfKey(key string) string {
	if i := strings.IndexByte(key, '/'); i > 0 {
		return key[:i]
	}
	return ""
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
