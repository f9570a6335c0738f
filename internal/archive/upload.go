package archive

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"
)

// Uploader copies archives into a blob bucket.
type Uploader struct {
	bucketURL string
	prefix    string
	bucket    *blob.Bucket // set when the caller owns the bucket
}

// NewUploader uploads into the bucket named by a gocloud URL such as
// s3://bucket?region=eu-west-1, gs://bucket or file:///var/archives. A
// "prefix" query parameter is honoured by the blob drivers themselves.
func NewUploader(bucketURL string) (*Uploader, error) {
	u, err := url.Parse(bucketURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upload url: %w", err)
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("upload url %q has no scheme", bucketURL)
	}
	return &Uploader{bucketURL: bucketURL, prefix: u.Query().Get("prefix")}, nil
}

// NewBucketUploader uploads into an already open bucket. The caller keeps
// ownership of bkt.
func NewBucketUploader(bkt *blob.Bucket) *Uploader {
	return &Uploader{bucket: bkt}
}

// Upload stores localPath under its base name and returns the object location.
func (u *Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	bkt := u.bucket
	if bkt == nil {
		opened, err := blob.OpenBucket(ctx, u.bucketURL)
		if err != nil {
			return "", fmt.Errorf("open bucket: %w", err)
		}
		defer opened.Close()
		bkt = opened
	}

	key := filepath.Base(localPath)

	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	// cancelling wctx before Close discards the object instead of committing it
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := bkt.NewWriter(wctx, key, &blob.WriterOptions{ContentType: contentType(key)})
	if err != nil {
		return "", fmt.Errorf("create object writer: %w", err)
	}

	if _, err := io.Copy(w, f); err != nil {
		cancel()
		_ = w.Close()
		return "", fmt.Errorf("write object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("commit object %s: %w", key, err)
	}

	return u.location(key), nil
}

func (u *Uploader) location(key string) string {
	if u.bucketURL == "" {
		return key
	}
	base := u.bucketURL
	if i := strings.IndexByte(base, '?'); i >= 0 {
		base = base[:i]
	}
	return strings.TrimRight(base, "/") + "/" + path.Join(u.prefix, key)
}

func contentType(key string) string {
	if strings.HasSuffix(strings.ToLower(key), ".zip") {
		return "application/zip"
	}
	return "application/octet-stream"
}
