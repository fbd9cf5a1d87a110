package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GridFS stores blobs in the default "fs" bucket of a MongoDB database,
// the same namespace the registration form has always written photos to.
type GridFS struct {
	bucket *gridfs.Bucket
}

// NewGridFS opens the default bucket on db.
func NewGridFS(db *mongo.Database) (*GridFS, error) {
	bucket, err := gridfs.NewBucket(db)
	if err != nil {
		return nil, fmt.Errorf("gridfs: open bucket: %w", err)
	}
	return &GridFS{bucket: bucket}, nil
}

// Put uploads data as a new file. The gridfs API in this driver line has no
// context parameter, so ctx only gates the call.
func (g *GridFS) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	opts := options.GridFSUpload().SetMetadata(bson.D{{Key: "content_type", Value: contentType}})
	id, err := g.bucket.UploadFromStream(name, bytes.NewReader(data), opts)
	if err != nil {
		return "", fmt.Errorf("gridfs: upload %s: %w", name, err)
	}
	return id.Hex(), nil
}

func (g *GridFS) Get(ctx context.Context, id string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	stream, err := g.bucket.OpenDownloadStream(oid)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("gridfs: open %s: %w", id, err)
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("gridfs: read %s: %w", id, err)
	}

	contentType, ok := stream.GetFile().Metadata.Lookup("content_type").StringValueOK()
	if !ok || contentType == "" {
		contentType = mimetype.Detect(data).String()
	}
	return &Object{ContentType: contentType, Data: data}, nil
}

func (g *GridFS) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := g.bucket.Delete(oid); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("gridfs: delete %s: %w", id, err)
	}
	return nil
}
