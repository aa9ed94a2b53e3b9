package services

import (
	"fmt"
	"strings"

	"github.com/sfstore/sfs/internal/common"
)

const (
	minBasketNameLen = 3
	maxBasketNameLen = 63
)

// NormalizeBasketName turns a client-supplied basket name into its
// slug form: lowercase, spaces and underscores become hyphens. The result
// must be URL-safe ([a-z0-9-], no leading/trailing/double hyphen) or the
// name is rejected with ErrInvalidName.
func NormalizeBasketName(name string) (string, error) {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.ReplaceAll(slug, "_", "-")

	if len(slug) < minBasketNameLen || len(slug) > maxBasketNameLen {
		return "", fmt.Errorf("basket name %q: %w", name, common.ErrInvalidName)
	}
	if strings.HasPrefix(slug, "-") || strings.HasSuffix(slug, "-") || strings.Contains(slug, "--") {
		return "", fmt.Errorf("basket name %q: %w", name, common.ErrInvalidName)
	}
	for _, c := range slug {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' {
			return "", fmt.Errorf("basket name %q: %w", name, common.ErrInvalidName)
		}
	}
	return slug, nil
}
