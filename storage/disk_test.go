package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDisk(t *testing.T) *DiskStorage {
	t.Helper()
	return NewDiskStorage(t.TempDir(), "http://localhost/files/")
}

func TestDiskStorage_PutListDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestDisk(t)
	staging := t.TempDir()

	for _, key := range []string{
		PlaceholderKey("alice", "wedding-2024"),
		PhotoKey("alice", "wedding-2024", "a.jpg"),
		PhotoKey("alice", "wedding-2024", "b.png"),
		PlaceholderKey("alice", "birthday"),
		PhotoKey("bob", "party", "c.jpg"),
	} {
		url, err := PutBytes(ctx, s, staging, key, []byte("data"))
		require.NoError(t, err)
		assert.Equal(t, "http://localhost/files/"+key, url)
	}

	keys, err := s.List(ctx, AlbumPrefix("alice", "wedding-2024"), "", 0)
	require.NoError(t, err)
	assert.Len(t, keys, 3)
	assert.Equal(t, []string{
		"event_albums/alice/wedding-2024/a.jpg",
		"event_albums/alice/wedding-2024/b.png",
	}, PhotoKeys(keys))

	folders, err := s.List(ctx, PhotographerPrefix("alice"), "/", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"event_albums/alice/birthday/", "event_albums/alice/wedding-2024/"}, folders)

	limited, err := s.List(ctx, AlbumsRoot, "", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	missing, err := s.List(ctx, AlbumPrefix("carol", "none"), "", 0)
	require.NoError(t, err)
	assert.Empty(t, missing)

	require.NoError(t, s.Delete(ctx, PhotoKey("alice", "wedding-2024", "a.jpg")))
	// deleting twice is fine
	require.NoError(t, s.Delete(ctx, PhotoKey("alice", "wedding-2024", "a.jpg")))

	photos, err := ListPhotos(ctx, s, AlbumPrefix("alice", "wedding-2024"))
	require.NoError(t, err)
	assert.Equal(t, []string{"event_albums/alice/wedding-2024/b.png"}, photos)

	// staging files are cleaned up
	left, err := NewDiskStorage(staging, "").List(ctx, "", "", 0)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestDiskStorage_SaveLoad(t *testing.T) {
	s := newTestDisk(t)
	_, err := s.Save("ref.jpg", bytes.NewBufferString("jpeg"))
	require.NoError(t, err)
	assert.True(t, s.Exists("ref.jpg"))
	assert.False(t, s.Exists("other.jpg"))

	var buf bytes.Buffer
	_, err = s.Load("ref.jpg", &buf)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", buf.String())

	_, err = s.Save("../escape.jpg", bytes.NewBufferString("x"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestDeletePrefix(t *testing.T) {
	ctx := context.Background()
	s := newTestDisk(t)
	for _, name := range []string{".placeholder", "1.jpg", "2.jpg"} {
		_, err := s.Save(PhotoKey("alice", "gone", name), bytes.NewBufferString("x"))
		require.NoError(t, err)
	}
	deleted, failures := DeletePrefix(ctx, s, AlbumPrefix("alice", "gone"))
	assert.Equal(t, 3, deleted)
	assert.Empty(t, failures)

	keys, err := s.List(ctx, AlbumPrefix("alice", "gone"), "", 0)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestDeletePrefixBeyondOnePage(t *testing.T) {
	ctx := context.Background()
	s := newTestDisk(t)
	prefix := AlbumPrefix("alice", "big")
	for i := 0; i < DefaultListLimit+5; i++ {
		_, err := s.Save(PhotoKey("alice", "big", fmt.Sprintf("%04d.jpg", i)), bytes.NewBufferString("x"))
		require.NoError(t, err)
	}

	deleted, failures := DeletePrefix(ctx, s, prefix)
	assert.Equal(t, DefaultListLimit+5, deleted)
	assert.Empty(t, failures)

	keys, err := s.List(ctx, prefix, "", NoLimit)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

// flakyStore fails deletes for a single key
type flakyStore struct {
	ObjectStore
	failKey string
}

func (f *flakyStore) Delete(ctx context.Context, key string) error {
	if key == f.failKey {
		return errors.New("access denied")
	}
	return f.ObjectStore.Delete(ctx, key)
}

func TestDeletePrefixKeepsGoingAfterFailure(t *testing.T) {
	ctx := context.Background()
	disk := newTestDisk(t)
	for _, name := range []string{"1.jpg", "2.jpg", "3.jpg"} {
		_, err := disk.Save(PhotoKey("alice", "party", name), bytes.NewBufferString("x"))
		require.NoError(t, err)
	}
	s := &flakyStore{ObjectStore: disk, failKey: PhotoKey("alice", "party", "1.jpg")}

	deleted, failures := DeletePrefix(ctx, s, AlbumPrefix("alice", "party"))
	assert.Equal(t, 2, deleted)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Error(), "1.jpg")

	keys, err := disk.List(ctx, AlbumPrefix("alice", "party"), "", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{PhotoKey("alice", "party", "1.jpg")}, keys)
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "wedding-2024", BaseName("event_albums/alice/wedding-2024/"))
	assert.Equal(t, "a.jpg", BaseName("event_albums/alice/wedding-2024/a.jpg"))
	assert.Equal(t, "plain", BaseName("plain"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/png", ContentType("x/y.PNG"))
	assert.Equal(t, "application/octet-stream", ContentType("noext"))
}
