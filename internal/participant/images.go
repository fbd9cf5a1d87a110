package participant

import (
	"context"
	"errors"
	"fmt"

	"checkin/internal/blob"
)

// Image is a resolved photo ready to be served.
type Image struct {
	ContentType string
	Data        []byte
}

// ImageSource decides where a participant's photo lives. The HTTP layer and
// the sheet sync only ever talk to this interface.
type ImageSource interface {
	// Attach stores img for p before p is inserted.
	Attach(ctx context.Context, p *Participant, img Image) error
	// Resolve returns the photo for p, or ErrNoImage.
	Resolve(ctx context.Context, p *Participant) (*Image, error)
	// Release drops storage held outside the record.
	Release(ctx context.Context, p *Participant) error
}

// InlineImages keeps photo bytes inside the record itself.
type InlineImages struct{}

func (InlineImages) Attach(_ context.Context, p *Participant, img Image) error {
	p.Data = img.Data
	p.ContentType = img.ContentType
	p.ImageID = ""
	return nil
}

func (InlineImages) Resolve(_ context.Context, p *Participant) (*Image, error) {
	if len(p.Data) == 0 {
		return nil, ErrNoImage
	}
	contentType := p.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return &Image{ContentType: contentType, Data: p.Data}, nil
}

func (InlineImages) Release(context.Context, *Participant) error { return nil }

// BlobImages keeps only a reference in the record and the bytes in a blob
// store.
type BlobImages struct {
	store blob.Store
}

// NewBlobImages wraps store.
func NewBlobImages(store blob.Store) *BlobImages {
	return &BlobImages{store: store}
}

func (b *BlobImages) Attach(ctx context.Context, p *Participant, img Image) error {
	id, err := b.store.Put(ctx, p.Filename, img.ContentType, img.Data)
	if err != nil {
		return err
	}
	p.ImageID = id
	p.ContentType = img.ContentType
	p.Data = nil
	return nil
}

func (b *BlobImages) Resolve(ctx context.Context, p *Participant) (*Image, error) {
	if p.ImageID == "" {
		return nil, ErrNoImage
	}
	obj, err := b.store.Get(ctx, p.ImageID)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, fmt.Errorf("%w: blob %s", ErrNoImage, p.ImageID)
		}
		return nil, err
	}
	contentType := obj.ContentType
	if contentType == "" {
		contentType = p.ContentType
	}
	return &Image{ContentType: contentType, Data: obj.Data}, nil
}

func (b *BlobImages) Release(ctx context.Context, p *Participant) error {
	if p.ImageID == "" {
		return nil
	}
	if err := b.store.Delete(ctx, p.ImageID); err != nil && !errors.Is(err, blob.ErrNotFound) {
		return err
	}
	return nil
}
