package cache

import (
	"path/filepath"
	"strings"
)

// sanitizeID maps an opaque asset ID to a safe file name. Stable: the same ID
// always maps to the same name.
func sanitizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := strings.TrimLeft(b.String(), ".")
	if s == "" {
		s = "unknown"
	}
	return s
}

// Path returns the cache file path for an asset under dir.
func Path(dir, id string) string {
	return filepath.Join(dir, sanitizeID(id)+".mp4")
}

// DonePath returns the completion marker path for an asset. The marker exists
// only after a fetch finished successfully.
func DonePath(dir, id string) string {
	return filepath.Join(dir, sanitizeID(id)+".mp4.done")
}

// HLSDir returns the directory holding the segmented (playlist + segments)
// variant of an asset.
func HLSDir(dir, id string) string {
	return filepath.Join(dir, "hls", sanitizeID(id))
}
