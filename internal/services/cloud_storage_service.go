package services

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
)

// GCSArchive keeps a copy of every delivered variant in a Cloud Storage
// bucket. Object names are placed under prefix.
type GCSArchive struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewGCSArchive(ctx context.Context, bucket, prefix string) (*GCSArchive, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSArchive{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

func (a *GCSArchive) objectName(name string) string {
	if a.prefix == "" {
		return name
	}
	return path.Join(a.prefix, name)
}

func (a *GCSArchive) UploadFile(ctx context.Context, objectName string, content io.Reader) error {
	name := a.objectName(objectName)
	w := a.client.Bucket(a.bucket).Object(name).NewWriter(ctx)
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		w.ContentType = ct
	}
	w.ContentDisposition = fmt.Sprintf("attachment; filename=%q", path.Base(name))

	n, err := io.Copy(w, content)
	if err != nil {
		w.Close()
		return fmt.Errorf("upload %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", name, err)
	}
	zerolog.Ctx(ctx).Debug().Str("bucket", a.bucket).Str("object", name).Int64("bytes", n).Msg("variant archived")
	return nil
}

func (a *GCSArchive) Close() error {
	return a.client.Close()
}
