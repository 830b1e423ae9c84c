package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
	"github.com/alanyoungcy/auctionhouse/internal/store/memory"
)

type memWriter struct {
	objects map[string][]byte
	fail    error
	short   int64
}

func (w *memWriter) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	if w.fail != nil {
		return w.fail
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if w.objects == nil {
		w.objects = make(map[string][]byte)
	}
	w.objects[path] = b
	return nil
}

func (w *memWriter) PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error {
	return w.Put(ctx, path, data, "")
}

// Stat reports the stored size minus short, simulating a truncated upload.
func (w *memWriter) Stat(ctx context.Context, path string) (domain.BlobInfo, error) {
	b, ok := w.objects[path]
	if !ok {
		return domain.BlobInfo{}, domain.ErrNotFound
	}
	return domain.BlobInfo{Path: path, Size: int64(len(b)) - w.short}, nil
}

func seedAudit(t *testing.T) (*memory.AuditStore, time.Time) {
	t.Helper()
	ctx := context.Background()
	audit := memory.NewAuditStore()
	require.NoError(t, audit.Log(ctx, "listing.sold", map[string]any{"listing_id": "a"}))
	require.NoError(t, audit.Log(ctx, "listing.won", map[string]any{"listing_id": "b"}))
	cutoff := time.Now().Add(time.Second)
	return audit, cutoff
}

func TestArchiveSettlements(t *testing.T) {
	ctx := context.Background()
	audit, cutoff := seedAudit(t)
	w := &memWriter{}
	a := NewArchiver(w, audit, slog.New(slog.NewTextHandler(io.Discard, nil)))

	n, err := a.ArchiveSettlements(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	obj, ok := w.objects[archivePath("audit", cutoff)]
	require.True(t, ok)
	var events []string
	sc := bufio.NewScanner(bytes.NewReader(obj))
	for sc.Scan() {
		var e domain.AuditEntry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		events = append(events, e.Event)
	}
	assert.Equal(t, []string{"listing.sold", "listing.won"}, events)

	left, err := audit.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, left)

	n, err = a.ArchiveSettlements(ctx, cutoff)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestArchiveUploadFailureKeepsRows(t *testing.T) {
	ctx := context.Background()
	audit, cutoff := seedAudit(t)
	w := &memWriter{fail: errors.New("bucket gone")}
	a := NewArchiver(w, audit, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := a.ArchiveSettlements(ctx, cutoff)
	require.Error(t, err)

	left, err := audit.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, left, 2)
}

func TestArchiveVerifiesUploadBeforePruning(t *testing.T) {
	ctx := context.Background()
	audit, cutoff := seedAudit(t)
	w := &memWriter{short: 1}
	a := NewArchiver(w, audit, slog.New(slog.NewTextHandler(io.Discard, nil))).WithVerifier(w)

	_, err := a.ArchiveSettlements(ctx, cutoff)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verify")

	left, err := audit.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, left, 2, "rows stay when the stored object is incomplete")

	w.short = 0
	n, err := a.ArchiveSettlements(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

type fakeHeadAPI struct {
	size int64
	err  error
}

func (f *fakeHeadAPI) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(f.size),
		ContentType:   aws.String("application/x-ndjson"),
	}, nil
}

func TestReaderStat(t *testing.T) {
	r := &Reader{client: &fakeHeadAPI{size: 42}, loc: location{bucket: "b"}}
	info, err := r.Stat(context.Background(), "archive/x.jsonl")
	require.NoError(t, err)
	assert.Equal(t, int64(42), info.Size)
	assert.Equal(t, "archive/x.jsonl", info.Path)
	assert.Equal(t, "application/x-ndjson", info.ContentType)
}

func TestReaderStatNotFound(t *testing.T) {
	r := &Reader{client: &fakeHeadAPI{err: &types.NotFound{}}, loc: location{bucket: "b"}}
	_, err := r.Stat(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestArchivePath(t *testing.T) {
	at := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "archive/audit/2026-01-31T000000Z.jsonl", archivePath("audit", at))
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://s3.example.com", normaliseEndpoint("https://s3.example.com", false))
	assert.Equal(t, "http://localhost:9000", normaliseEndpoint("localhost:9000", false))
	assert.Equal(t, "https://minio.internal", normaliseEndpoint("minio.internal", true))
}

type fakeUploadAPI struct {
	puts []*s3.PutObjectInput
}

func (f *fakeUploadAPI) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeUploadAPI) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errors.New("unexpected multipart")
}

func (f *fakeUploadAPI) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errors.New("unexpected multipart")
}

func (f *fakeUploadAPI) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errors.New("unexpected multipart")
}

func (f *fakeUploadAPI) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return nil, errors.New("unexpected multipart")
}

func TestWriterPut(t *testing.T) {
	api := &fakeUploadAPI{}
	w := &Writer{client: api, loc: location{bucket: "auction-archive"}}

	require.NoError(t, w.Put(context.Background(), "archive/x.jsonl", bytes.NewReader([]byte("{}\n")), "application/x-ndjson"))
	require.Len(t, api.puts, 1)
	assert.Equal(t, "auction-archive", aws.ToString(api.puts[0].Bucket))
	assert.Equal(t, "archive/x.jsonl", aws.ToString(api.puts[0].Key))
	assert.Equal(t, "application/x-ndjson", aws.ToString(api.puts[0].ContentType))
}

func TestWriterPutMultipartSmallBodyUsesSinglePut(t *testing.T) {
	api := &fakeUploadAPI{}
	w := &Writer{client: api, loc: location{bucket: "b"}}

	require.NoError(t, w.PutMultipart(context.Background(), "k", bytes.NewReader([]byte("tiny")), 1))
	assert.Len(t, api.puts, 1)
}

func TestWriterAppliesPrefixAndStorageClass(t *testing.T) {
	api := &fakeUploadAPI{}
	w := &Writer{client: api, loc: location{bucket: "b", prefix: "prod", storageClass: types.StorageClassStandardIa}}

	require.NoError(t, w.PutMultipart(context.Background(), "archive/audit/x.jsonl", bytes.NewReader([]byte("{}\n")), 0))
	require.Len(t, api.puts, 1)
	put := api.puts[0]
	assert.Equal(t, "prod/archive/audit/x.jsonl", aws.ToString(put.Key))
	assert.Equal(t, types.StorageClassStandardIa, put.StorageClass)
	assert.Equal(t, archiveContentType, aws.ToString(put.ContentType))
	assert.Equal(t, "auctionhouse", put.Metadata["writer"])
}

type keyRecordingHeadAPI struct {
	keys []string
}

func (f *keyRecordingHeadAPI) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.keys = append(f.keys, aws.ToString(in.Key))
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(1)}, nil
}

func TestReaderStatUsesPrefix(t *testing.T) {
	api := &keyRecordingHeadAPI{}
	r := &Reader{client: api, loc: location{bucket: "b", prefix: "prod"}}

	info, err := r.Stat(context.Background(), "archive/x.jsonl")
	require.NoError(t, err)
	assert.Equal(t, []string{"prod/archive/x.jsonl"}, api.keys)
	assert.Equal(t, "archive/x.jsonl", info.Path)
}

func TestClientConfigValidate(t *testing.T) {
	ok := ClientConfig{Bucket: "b", Region: "us-east-1"}
	require.NoError(t, ok.validate())

	ok.StorageClass = "standard_ia"
	require.NoError(t, ok.validate())

	bad := ClientConfig{AccessKey: "only-half", StorageClass: "FROZEN"}
	err := bad.validate()
	require.Error(t, err)
	for _, want := range []string{"bucket", "region", "secret key", "FROZEN"} {
		assert.Contains(t, err.Error(), want)
	}
}
