package s3blob

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

const (
	// minPartSize is the S3 minimum multipart part size (5 MiB).
	minPartSize int64 = 5 * 1024 * 1024
	// archiveContentType is what every audit archive holds.
	archiveContentType = "application/x-ndjson"
)

// archiveMetadata tags objects so a bucket shared with other systems can be
// filtered to what the auction house wrote.
var archiveMetadata = map[string]string{"writer": "auctionhouse"}

// Writer implements domain.BlobWriter on an S3-compatible bucket. Object keys
// are placed under the client's prefix and uploads use its storage class.
type Writer struct {
	client manager.UploadAPIClient
	loc    location
}

func NewWriter(c *Client) *Writer {
	return &Writer{client: c.api, loc: c.loc}
}

// input builds the PutObject request shared by both upload paths.
func (w *Writer) input(p string, data io.Reader, contentType string) *s3.PutObjectInput {
	if contentType == "" {
		contentType = archiveContentType
	}
	return &s3.PutObjectInput{
		Bucket:       aws.String(w.loc.bucket),
		Key:          aws.String(w.loc.key(p)),
		Body:         data,
		ContentType:  aws.String(contentType),
		StorageClass: w.loc.storageClass,
		Metadata:     archiveMetadata,
	}
}

// Put uploads data with a single PutObject call.
func (w *Writer) Put(ctx context.Context, p string, data io.Reader, contentType string) error {
	if _, err := w.client.PutObject(ctx, w.input(p, data, contentType)); err != nil {
		return fmt.Errorf("s3blob: put object %s: %w", w.loc.key(p), err)
	}
	return nil
}

// PutMultipart uploads data in concurrent parts of partSize bytes, clamped
// to the S3 minimum. A failed upload is aborted so no orphaned parts are
// billed.
func (w *Writer) PutMultipart(ctx context.Context, p string, data io.Reader, partSize int64) error {
	if partSize < minPartSize {
		partSize = minPartSize
	}
	uploader := manager.NewUploader(w.client, func(u *manager.Uploader) {
		u.PartSize = partSize
		u.LeavePartsOnError = false
	})

	if _, err := uploader.Upload(ctx, w.input(p, data, "")); err != nil {
		return fmt.Errorf("s3blob: multipart upload %s: %w", w.loc.key(p), err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.BlobWriter = (*Writer)(nil)
