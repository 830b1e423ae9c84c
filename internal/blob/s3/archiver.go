package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// multipartThreshold switches uploads above this size to PutMultipart.
const multipartThreshold = 32 * 1024 * 1024

// AuditArchiver implements domain.Archiver. It copies audit rows older than
// a cutoff to a JSONL object and only then deletes them from the store, so a
// failed upload never loses history.
type AuditArchiver struct {
	writer domain.BlobWriter
	verify domain.BlobReader
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewArchiver creates an AuditArchiver.
func NewArchiver(writer domain.BlobWriter, audit domain.AuditStore, logger *slog.Logger) *AuditArchiver {
	return &AuditArchiver{
		writer: writer,
		audit:  audit,
		logger: logger.With(slog.String("component", "audit_archiver")),
	}
}

// WithVerifier makes the archiver confirm each upload is stored in full
// before any row is deleted.
func (a *AuditArchiver) WithVerifier(r domain.BlobReader) *AuditArchiver {
	a.verify = r
	return a
}

// ArchiveSettlements moves every audit entry older than before to
// archive/audit/<cutoff>.jsonl and returns how many entries were archived.
func (a *AuditArchiver) ArchiveSettlements(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.audit.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit marshal: %w", err)
	}

	path := archivePath("audit", before)
	if len(buf) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit upload: %w", err)
	}
	if a.verify != nil {
		info, err := a.verify.Stat(ctx, path)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive audit verify: %w", err)
		}
		if info.Size != int64(len(buf)) {
			return 0, fmt.Errorf("s3blob: archive audit verify %s: stored %d bytes, wrote %d", path, info.Size, len(buf))
		}
	}

	deleted, err := a.audit.DeleteBefore(ctx, before)
	if err != nil {
		return int64(len(entries)), fmt.Errorf("s3blob: archive audit prune: %w", err)
	}

	a.logger.InfoContext(ctx, "audit entries archived",
		slog.String("path", path),
		slog.Int("archived", len(entries)),
		slog.Int64("deleted", deleted),
	)
	return int64(len(entries)), nil
}

// archivePath builds the object key for an archive, named by the UTC cutoff:
//
//	archive/audit/2026-01-31T000000Z.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.UTC().Format("2006-01-02T150405Z"))
}

// marshalJSONL encodes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*AuditArchiver)(nil)
