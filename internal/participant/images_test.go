package participant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin/internal/blob"
)

type countingStore struct {
	blob.Store
	gets int
}

func (c *countingStore) Get(ctx context.Context, id string) (*blob.Object, error) {
	c.gets++
	return c.Store.Get(ctx, id)
}

func TestCachedImagesServesRepeatsFromMemory(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Store: blob.NewMemory()}
	images := NewCachedImages(NewBlobImages(store), time.Minute)

	p := &Participant{Filename: "a.png"}
	require.NoError(t, images.Attach(ctx, p, Image{ContentType: "image/png", Data: []byte("png")}))

	for i := 0; i < 3; i++ {
		img, err := images.Resolve(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, []byte("png"), img.Data)
	}
	assert.Equal(t, 1, store.gets)

	require.NoError(t, images.Release(ctx, p))
	_, err := images.Resolve(ctx, p)
	assert.ErrorIs(t, err, ErrNoImage)
	assert.Equal(t, 2, store.gets)
}

func TestCachedImagesDoesNotCacheMisses(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Store: blob.NewMemory()}
	images := NewCachedImages(NewBlobImages(store), time.Minute)

	p := &Participant{ImageID: "missing"}
	for i := 0; i < 2; i++ {
		_, err := images.Resolve(ctx, p)
		assert.ErrorIs(t, err, ErrNoImage)
	}
	assert.Equal(t, 2, store.gets)
}

func TestInlineImagesDefaultContentType(t *testing.T) {
	p := &Participant{Data: []byte("raw")}
	img, err := InlineImages{}.Resolve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.ContentType)

	_, err = InlineImages{}.Resolve(context.Background(), &Participant{})
	assert.ErrorIs(t, err, ErrNoImage)
}
