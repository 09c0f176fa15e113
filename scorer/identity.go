package scorer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

// IdentityFunc derives the cache key of a document
type IdentityFunc func(Document) string

// Identity names accepted by IdentityByName
const (
	IdentityStem    = "stem"
	IdentityContent = "content"
)

// FilenameStem keys a document by its file name without extension.
// Edits to the content do not invalidate the cached record.
func FilenameStem(doc Document) string {
	base := filepath.Base(doc.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ContentHash keys a document by the SHA-256 of its content
func ContentHash(doc Document) string {
	sum := sha256.Sum256([]byte(doc.Content))
	return hex.EncodeToString(sum[:])
}

// IdentityByName returns the identity function registered under name
func IdentityByName(name string) (IdentityFunc, error) {
	switch name {
	case "", IdentityStem:
		return FilenameStem, nil
	case IdentityContent:
		return ContentHash, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownIdentity, name)
	}
}
