package custody

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/casefile-labs/bwc-pipeline/internal/domain/entities"
	"github.com/casefile-labs/bwc-pipeline/errors"
	stdErrors "errors"
)

func writeTempFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "evidence.mp4")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestIngest_HashStability(t *testing.T) {
	tracker := NewTracker(nil)
	path := writeTempFile(t, []byte("body camera footage bytes"))
	meta := entities.AcquisitionMeta{AcquiredBy: "records clerk", Source: "public-records request #42"}

	first, err := tracker.Ingest(context.Background(), path, meta)
	if err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	second, err := tracker.Ingest(context.Background(), path, meta)
	if err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}

	if first.SHA256 != second.SHA256 {
		t.Fatalf("digest not stable: %s vs %s", first.SHA256, second.SHA256)
	}
	if first.SizeBytes != int64(len("body camera footage bytes")) {
		t.Fatalf("unexpected size %d", first.SizeBytes)
	}
	if first.AcquiredBy != "records clerk" {
		t.Fatalf("metadata not recorded: %q", first.AcquiredBy)
	}
}

func TestIngest_MutationChangesDigest(t *testing.T) {
	tracker := NewTracker(nil)
	path := writeTempFile(t, []byte("original content"))

	before, err := tracker.Ingest(context.Background(), path, entities.AcquisitionMeta{AcquiredBy: "a"})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("original contenT"), 0o600); err != nil {
		t.Fatalf("mutate file: %v", err)
	}

	after, err := tracker.Ingest(context.Background(), path, entities.AcquisitionMeta{AcquiredBy: "a"})
	if err != nil {
		t.Fatalf("re-ingest failed: %v", err)
	}
	if before.SHA256 == after.SHA256 {
		t.Fatal("digest unchanged after mutating a byte")
	}
}

func TestVerify_DetectsTampering(t *testing.T) {
	tracker := NewTracker(nil)
	path := writeTempFile(t, []byte("pristine"))

	ev, err := tracker.Ingest(context.Background(), path, entities.AcquisitionMeta{AcquiredBy: "a"})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if err := tracker.Verify(context.Background(), ev); err != nil {
		t.Fatalf("verify of untouched file failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("tampered"), 0o600); err != nil {
		t.Fatalf("mutate file: %v", err)
	}

	err = tracker.Verify(context.Background(), ev)
	if err == nil {
		t.Fatal("expected digest mismatch error")
	}
	var appErr errors.AppError
	if !stdErrors.As(err, &appErr) || appErr.Code != errors.ErrorCode_DIGEST_MISMATCH {
		t.Fatalf("expected DIGEST_MISMATCH, got %v", err)
	}
}

func TestIngest_UnreadableFileIsFatal(t *testing.T) {
	tracker := NewTracker(nil)

	_, err := tracker.Ingest(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"), entities.AcquisitionMeta{})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	var appErr errors.AppError
	if !stdErrors.As(err, &appErr) || appErr.Code != errors.ErrorCode_EVIDENCE_UNREADABLE {
		t.Fatalf("expected EVIDENCE_UNREADABLE, got %v", err)
	}
}

func TestIngest_CancelledContext(t *testing.T) {
	tracker := NewTracker(nil)
	path := writeTempFile(t, []byte("some bytes"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := tracker.Ingest(ctx, path, entities.AcquisitionMeta{}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
