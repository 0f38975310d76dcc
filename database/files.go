package database

import (
	"context"
	"fmt"
	"io"

	"educhat/backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// SaveFile streams r into the attachments bucket.
func (s *Store) SaveFile(ctx context.Context, filename, contentType string, r io.Reader) (*models.Attachment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	src := &countingReader{r: r}
	opts := options.GridFSUpload().SetMetadata(bson.M{"contentType": contentType})
	id, err := s.files.UploadFromStream(filename, src, opts)
	if err != nil {
		return nil, fmt.Errorf("upload %q: %w", filename, err)
	}
	return &models.Attachment{
		FileID:      id,
		Filename:    filename,
		ContentType: contentType,
		Size:        src.n,
	}, nil
}

func (s *Store) OpenFile(ctx context.Context, fileID primitive.ObjectID) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stream, err := s.files.OpenDownloadStream(fileID)
	if err != nil {
		return nil, mapError(err)
	}
	return stream, nil
}

func (s *Store) DeleteFile(ctx context.Context, fileID primitive.ObjectID) error {
	return mapError(s.files.DeleteContext(ctx, fileID))
}
