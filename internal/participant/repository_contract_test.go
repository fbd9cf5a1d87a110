package participant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runRepositoryContract exercises the behavior every backend must share.
// missingID must be well formed for the backend but never issued.
func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) Repository, missingID string) {
	ctx := context.Background()

	t.Run("insert assigns id and round trips", func(t *testing.T) {
		repo := newRepo(t)
		p := &Participant{
			Name: "Alice", Email: "alice@example.com", Phone: "555-0100",
			Filename: "photo.jpg", Data: []byte("jpeg-bytes"), ContentType: "image/jpeg",
			Status: StatusNotEntered,
		}
		require.NoError(t, repo.Insert(ctx, p))
		require.NotEmpty(t, p.ID)
		assert.False(t, p.CreatedAt.IsZero())

		got, err := repo.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
		assert.Equal(t, "Alice", got.Name)
		assert.Equal(t, "alice@example.com", got.Email)
		assert.Equal(t, "555-0100", got.Phone)
		assert.Equal(t, "photo.jpg", got.Filename)
		assert.Equal(t, []byte("jpeg-bytes"), got.Data)
		assert.Equal(t, "image/jpeg", got.ContentType)
		assert.Equal(t, StatusNotEntered, got.Status)
		assert.Empty(t, got.QRCode)
	})

	t.Run("blob reference round trips", func(t *testing.T) {
		repo := newRepo(t)
		p := &Participant{Name: "Bob", Email: DefaultEmail, Phone: DefaultPhone, Filename: "b.png", ImageID: "65f1c0ffee00000000abcd12", Status: StatusNotEntered}
		require.NoError(t, repo.Insert(ctx, p))

		got, err := repo.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "65f1c0ffee00000000abcd12", got.ImageID)
		assert.Nil(t, got.Data)
		assert.True(t, got.HasImage())
	})

	t.Run("malformed and missing ids are distinct", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Get(ctx, "not-an-id")
		assert.ErrorIs(t, err, ErrMalformedID)
		_, err = repo.Get(ctx, missingID)
		assert.ErrorIs(t, err, ErrNotFound)

		assert.ErrorIs(t, repo.UpdateStatus(ctx, "not-an-id", StatusInCampus), ErrMalformedID)
		assert.ErrorIs(t, repo.UpdateStatus(ctx, missingID, StatusInCampus), ErrNotFound)
		assert.ErrorIs(t, repo.SetQRCode(ctx, missingID, "qr"), ErrNotFound)
	})

	t.Run("status, qr code and counts", func(t *testing.T) {
		repo := newRepo(t)
		ids := make([]string, 4)
		for i := range ids {
			p := &Participant{Name: "P", Email: DefaultEmail, Phone: DefaultPhone, Filename: "f.jpg", Status: StatusNotEntered}
			require.NoError(t, repo.Insert(ctx, p))
			ids[i] = p.ID
		}
		require.NoError(t, repo.UpdateStatus(ctx, ids[0], StatusInCampus))
		require.NoError(t, repo.UpdateStatus(ctx, ids[1], StatusInCampus))
		require.NoError(t, repo.UpdateStatus(ctx, ids[2], StatusOutsideCampus))
		require.NoError(t, repo.SetQRCode(ctx, ids[3], "aGVsbG8="))

		in, err := repo.CountByStatus(ctx, StatusInCampus)
		require.NoError(t, err)
		assert.EqualValues(t, 2, in)
		out, err := repo.CountByStatus(ctx, StatusOutsideCampus)
		require.NoError(t, err)
		assert.EqualValues(t, 1, out)

		got, err := repo.Get(ctx, ids[3])
		require.NoError(t, err)
		assert.Equal(t, "aGVsbG8=", got.QRCode)
		assert.Equal(t, StatusNotEntered, got.Status)

		all, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.Equal(t, ids[0], all[0].ID, "list keeps insertion order")
	})

	t.Run("delete all", func(t *testing.T) {
		repo := newRepo(t)
		for i := 0; i < 3; i++ {
			require.NoError(t, repo.Insert(ctx, &Participant{Name: "P", Email: DefaultEmail, Phone: DefaultPhone, Filename: "f.jpg", Status: StatusNotEntered}))
		}
		n, err := repo.DeleteAll(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 3, n)

		all, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
		require.NoError(t, repo.Ping(ctx))
	})
}

func TestMemoryRepository(t *testing.T) {
	runRepositoryContract(t, func(*testing.T) Repository {
		return NewMemoryRepository()
	}, "65f1c0ffee00000000000000")
}
