// Package fingerprint derives stable cache keys for source documents.
//
// Small files are keyed by a SHA-256 content hash; files above a size
// ceiling fall back to a size+mtime signature so that keying a multi-hundred
// megabyte PDF never requires reading it twice. Either way the key is stable
// for an unchanged source and changes whenever the source changes, which is
// all the cache layer relies on.
package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"time"
)

// DefaultHashCeiling is the file size (bytes) above which content hashing
// is skipped in favor of a size+mtime signature.
const DefaultHashCeiling = 50 << 20 // 50 MiB

// Fingerprint identifies a source document's content state.
type Fingerprint struct {
	Value      string    `json:"value"`       // "sha256:<hex>" or "sig:<size>-<mtime-unix-nano>"
	Size       int64     `json:"size"`        // Source size in bytes
	ModifiedAt time.Time `json:"modified_at"` // Source mtime
}

// Provider computes fingerprints for files. The zero value is not usable;
// construct with NewProvider.
type Provider struct {
	hashCeiling int64
}

// NewProvider creates a fingerprint provider. hashCeiling ≤ 0 selects
// DefaultHashCeiling.
func NewProvider(hashCeiling int64) *Provider {
	if hashCeiling <= 0 {
		hashCeiling = DefaultHashCeiling
	}
	return &Provider{hashCeiling: hashCeiling}
}

// ForFile fingerprints the file at path. Files at or under the hash ceiling
// are content-hashed; larger files get a size+mtime signature.
func (p *Provider) ForFile(path string) (Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Fingerprint{}, fmt.Errorf("fingerprint %s: is a directory", path)
	}

	fp := Fingerprint{
		Size:       info.Size(),
		ModifiedAt: info.ModTime(),
	}

	if info.Size() > p.hashCeiling {
		fp.Value = fmt.Sprintf("sig:%d-%d", info.Size(), info.ModTime().UnixNano())
		return fp, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return Fingerprint{}, fmt.Errorf("hash %s: %w", path, err)
	}
	fp.Value = fmt.Sprintf("sha256:%x", h.Sum(nil))
	return fp, nil
}

// ForContent fingerprints in-memory text that has no backing file (e.g.,
// text handed over MCP). Size is the byte length and ModifiedAt is zero.
func (p *Provider) ForContent(content string) Fingerprint {
	h := sha256.Sum256([]byte(content))
	return Fingerprint{
		Value: fmt.Sprintf("sha256:%x", h),
		Size:  int64(len(content)),
	}
}
