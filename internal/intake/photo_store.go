package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/wolfman30/medtour-booking/pkg/logging"
)

// ErrPhotoStorageDisabled is returned when no bucket is configured.
var ErrPhotoStorageDisabled = errors.New("intake: passport photo storage not configured")

// S3API is the subset of the S3 client used by PhotoStore.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// PhotoStore uploads passport photos to S3 with server-side encryption.
type PhotoStore struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
}

// NewPhotoStore creates a PhotoStore. If bucket is empty, uploads fail with
// ErrPhotoStorageDisabled.
func NewPhotoStore(s3Client S3API, bucket string, logger *logging.Logger) *PhotoStore {
	if logger == nil {
		logger = logging.Default()
	}
	return &PhotoStore{bucket: bucket, s3Client: s3Client, logger: logger}
}

func (p *PhotoStore) Enabled() bool {
	return p != nil && p.bucket != "" && p.s3Client != nil
}

// Upload stores the image and returns an s3:// reference for the intake form.
func (p *PhotoStore) Upload(ctx context.Context, bookingID uuid.UUID, filename, contentType string, body io.Reader, size int64) (string, error) {
	if !p.Enabled() {
		return "", ErrPhotoStorageDisabled
	}
	key := photoPrefix(bookingID) + uuid.NewString() + extensionFor(filename, contentType)
	_, err := p.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(p.bucket),
		Key:                  aws.String(key),
		Body:                 body,
		ContentLength:        aws.Int64(size),
		ContentType:          aws.String(contentType),
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
		Metadata:             map[string]string{"booking-id": bookingID.String()},
	})
	if err != nil {
		return "", fmt.Errorf("intake: s3 put %s: %w", key, err)
	}
	p.logger.Info("passport photo stored", "booking_id", bookingID, "s3_key", key, "bytes", size)
	return fmt.Sprintf("s3://%s/%s", p.bucket, key), nil
}

// Issued reports whether ref is an object reference Upload produced for the
// booking.
func (p *PhotoStore) Issued(bookingID uuid.UUID, ref string) bool {
	if !p.Enabled() {
		return false
	}
	prefix := fmt.Sprintf("s3://%s/%s", p.bucket, photoPrefix(bookingID))
	name, ok := strings.CutPrefix(ref, prefix)
	return ok && name != "" && !strings.ContainsAny(name, "/\\") && !strings.Contains(name, "..")
}

func photoPrefix(bookingID uuid.UUID) string {
	return fmt.Sprintf("passport-photos/%s/", bookingID)
}

func extensionFor(filename, contentType string) string {
	if ext := strings.ToLower(path.Ext(filename)); ext != "" && len(ext) <= 5 {
		return ext
	}
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/heic":
		return ".heic"
	}
	return ""
}
