package custody

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/casefile-labs/bwc-pipeline/errors"
	"github.com/casefile-labs/bwc-pipeline/internal/domain/entities"
)

// Tracker computes and re-verifies cryptographic proof of evidence
// identity. Hashing streams the file, so memory use is constant
// regardless of file size.
type Tracker struct {
	logger *zap.Logger
}

// NewTracker creates a chain-of-custody tracker
func NewTracker(logger *zap.Logger) *Tracker {
	return &Tracker{logger: logger}
}

// Ingest hashes the evidence file and records acquisition metadata.
// Any failure to read the file in full is fatal: no downstream artifact
// may reference an unverified file.
func (t *Tracker) Ingest(ctx context.Context, path string, meta entities.AcquisitionMeta) (*entities.EvidenceFile, error) {
	digest, size, err := t.hashFile(ctx, path)
	if err != nil {
		return nil, errors.ErrEvidenceUnreadable(path, err)
	}

	ev := &entities.EvidenceFile{
		Path:        path,
		DisplayName: meta.DisplayName,
		SizeBytes:   size,
		SHA256:      digest,
		AcquiredAt:  time.Now().UTC(),
		AcquiredBy:  meta.AcquiredBy,
		Source:      meta.Source,
	}

	if t.logger != nil {
		t.logger.Info("evidence ingested",
			zap.String("path", path),
			zap.String("sha256", digest),
			zap.Int64("size_bytes", size),
			zap.String("acquired_by", meta.AcquiredBy),
		)
	}

	return ev, nil
}

// Verify recomputes the digest of the file at the record's nominal path
// and compares it against the acquisition digest. A mismatch means the
// file changed since acquisition and is fatal.
func (t *Tracker) Verify(ctx context.Context, ev *entities.EvidenceFile) error {
	if ev == nil {
		return errors.ErrInvalidArgument("evidence record is nil")
	}

	digest, _, err := t.hashFile(ctx, ev.Path)
	if err != nil {
		return errors.ErrEvidenceUnreadable(ev.Path, err)
	}

	if digest != ev.SHA256 {
		if t.logger != nil {
			t.logger.Error("evidence digest mismatch",
				zap.String("path", ev.Path),
				zap.String("expected", ev.SHA256),
				zap.String("actual", digest),
			)
		}
		return errors.ErrDigestMismatch(ev.Path, ev.SHA256, digest)
	}

	return nil
}

// hashFile streams the file through SHA-256 in fixed-size chunks,
// honoring context cancellation between chunks.
func (t *Tracker) hashFile(ctx context.Context, path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, 1<<20)
	var total int64

	for {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}
		n, err := f.Read(buf)
		if n > 0 {
			total += int64(n)
			if _, werr := h.Write(buf[:n]); werr != nil {
				return "", 0, werr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", 0, fmt.Errorf("read %s: %w", path, err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), total, nil
}
