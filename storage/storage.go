package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"photoserver/metrics"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const placeholderName = ".placeholder"

// ObjectStore is the subset of an S3 compatible bucket the service relies on.
// Implementations are best-effort: a listed key may be gone moments later.
type ObjectStore interface {
	// Put uploads a local file and returns its public URL
	Put(ctx context.Context, localFile, key string) (string, error)
	// List returns object keys under prefix. With a delimiter, common
	// prefixes ("folders") are returned as well, each ending in the delimiter.
	// A zero limit means DefaultListLimit, NoLimit pages through everything.
	List(ctx context.Context, prefix, delimiter string, limit int) ([]string, error)
	// Delete succeeds for keys that do not exist
	Delete(ctx context.Context, key string) error
	URLFor(key string) string
}

// DefaultListLimit mirrors the S3 page size
const DefaultListLimit = 1000

// NoLimit makes List return every key under the prefix
const NoLimit = -1

func ContentType(path string) string {
	t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if t == "" {
		return "application/octet-stream"
	}
	return t
}

// PutBytes stages data in stagingDir and uploads it. The staging file is
// removed on every path.
func PutBytes(ctx context.Context, store ObjectStore, stagingDir, key string, data []byte) (string, error) {
	return PutReader(ctx, store, stagingDir, key, bytes.NewReader(data))
}

func PutReader(ctx context.Context, store ObjectStore, stagingDir, key string, reader io.Reader) (string, error) {
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return "", err
	}
	// keep the extension so the content type can be derived from the staged file
	staged := filepath.Join(stagingDir, uuid.NewString()+"_"+filepath.Base(key))
	file, err := os.Create(staged)
	if err != nil {
		return "", err
	}
	defer os.Remove(staged)
	_, err = io.Copy(file, reader)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", err
	}
	url, err := store.Put(ctx, staged, key)
	metrics.StorageOps.WithLabelValues("put", metrics.Outcome(err)).Inc()
	return url, err
}

// PhotoKeys drops directory markers and album placeholders from a listing
func PhotoKeys(keys []string) []string {
	return lo.Filter(keys, func(key string, _ int) bool {
		return !strings.HasSuffix(key, "/") && !strings.HasSuffix(key, placeholderName)
	})
}

// ListPhotos lists an album prefix and returns only real photos
func ListPhotos(ctx context.Context, store ObjectStore, prefix string) ([]string, error) {
	keys, err := store.List(ctx, prefix, "", DefaultListLimit)
	metrics.StorageOps.WithLabelValues("list", metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	return PhotoKeys(keys), nil
}

// DeletePrefix removes every object under prefix, however many there are.
// Failures are collected and do not stop the remaining deletes.
func DeletePrefix(ctx context.Context, store ObjectStore, prefix string) (deleted int, failures []error) {
	keys, err := store.List(ctx, prefix, "", NoLimit)
	metrics.StorageOps.WithLabelValues("list", metrics.Outcome(err)).Inc()
	if err != nil {
		return 0, []error{err}
	}
	for _, key := range keys {
		err := store.Delete(ctx, key)
		metrics.StorageOps.WithLabelValues("delete", metrics.Outcome(err)).Inc()
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", key, err))
			continue
		}
		deleted++
	}
	return deleted, failures
}
