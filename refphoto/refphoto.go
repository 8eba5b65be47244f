// Package refphoto keeps user reference photos reachable. Remote storage and
// the local cache can diverge, so lookups fall back to the cache and copy the
// photo back to the bucket when the remote object is gone.
package refphoto

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"photoserver/apperr"
	"photoserver/logutils"
	"photoserver/metrics"
	"photoserver/storage"

	imrocreq "github.com/imroc/req/v3"
)

const (
	headTimeout = 10 * time.Second
	getTimeout  = 30 * time.Second
)

const (
	msgReupload = "Reference photo could not be loaded. Please re-upload your reference photo."
	msgNotImage = "Stored reference photo is not an image."
	msgNoPhoto  = "Reference photo not found for user."
)

type Availability int

const (
	Missing Availability = iota
	Healthy
	Recovered
)

func (a Availability) String() string {
	switch a {
	case Healthy:
		return "healthy"
	case Recovered:
		return "recovered"
	}
	return "missing"
}

// Result of a lookup. RestoreErr is set when the photo was served from the
// cache but could not be written back to remote storage.
type Result struct {
	Availability Availability
	RestoreErr   error
}

func (r Result) Present() bool {
	return r.Availability != Missing
}

var errNotImage = errors.New("not an image")

type Resolver struct {
	store storage.ObjectStore
	cache *storage.DiskStorage
	req   *imrocreq.Client
}

func NewResolver(store storage.ObjectStore, cache *storage.DiskStorage) *Resolver {
	return &Resolver{
		store: store,
		cache: cache,
		req:   imrocreq.C().SetUserAgent("photoserver"),
	}
}

func cacheKey(path string) string {
	return storage.BaseName(path)
}

// Remember stores a copy of an uploaded reference photo in the local cache
func (r *Resolver) Remember(path string, data []byte) error {
	_, err := r.cache.Save(cacheKey(path), bytes.NewReader(data))
	return err
}

// Forget drops the cached copy, used when an upload is rolled back
func (r *Resolver) Forget(path string) {
	_ = r.cache.Delete(context.Background(), cacheKey(path))
}

// Exists reports whether the photo can be served, restoring it from the cache if needed
func (r *Resolver) Exists(ctx context.Context, path string) Result {
	if path == "" {
		return Result{Availability: Missing}
	}
	headCtx, cancel := context.WithTimeout(ctx, headTimeout)
	resp, err := r.req.R().SetContext(headCtx).Head(r.store.URLFor(path))
	cancel()
	if err == nil {
		err = checkImage(resp)
	}
	if err == nil {
		return r.count("exists", Result{Availability: Healthy})
	}
	logutils.Log.WithField("path", path).Debugf("reference photo not reachable remotely: %v", err)

	if !r.cache.Exists(cacheKey(path)) {
		return r.count("exists", Result{Availability: Missing})
	}
	return r.count("exists", r.restore(ctx, path))
}

// URL returns the public URL of the photo when it is available
func (r *Resolver) URL(ctx context.Context, path string) *string {
	if path == "" || !r.Exists(ctx, path).Present() {
		return nil
	}
	url := r.store.URLFor(path)
	return &url
}

// Fetch downloads the photo, falling back to the local cache
func (r *Resolver) Fetch(ctx context.Context, path string) ([]byte, Result, error) {
	if path == "" {
		return nil, r.count("fetch", Result{Availability: Missing}), apperr.NewNotFound(msgNoPhoto)
	}
	getCtx, cancel := context.WithTimeout(ctx, getTimeout)
	resp, err := r.req.R().SetContext(getCtx).Get(r.store.URLFor(path))
	if err == nil {
		err = checkImage(resp)
	}
	if err == nil {
		data := resp.Bytes()
		cancel()
		return data, r.count("fetch", Result{Availability: Healthy}), nil
	}
	cancel()
	logutils.Log.WithField("path", path).Warnf("reference photo download failed: %v", err)

	var buf bytes.Buffer
	if _, cerr := r.cache.Load(cacheKey(path), &buf); cerr != nil {
		message := msgReupload
		if errors.Is(err, errNotImage) {
			message = msgNotImage
		}
		return nil, r.count("fetch", Result{Availability: Missing}), apperr.Wrap(apperr.NotFound, message, err)
	}
	return buf.Bytes(), r.count("fetch", r.restore(ctx, path)), nil
}

// restore uploads the cached copy back to remote storage. Failures are logged
// and reported in the result, the photo is still usable from the cache.
func (r *Resolver) restore(ctx context.Context, path string) Result {
	result := Result{Availability: Recovered}
	local, err := r.cache.LocalPath(cacheKey(path))
	if err == nil {
		_, err = r.store.Put(ctx, local, path)
		metrics.StorageOps.WithLabelValues("put", metrics.Outcome(err)).Inc()
	}
	if err != nil {
		logutils.Log.WithField("path", path).Warnf("unable to restore reference photo: %v", err)
		result.RestoreErr = err
	} else {
		logutils.Log.WithField("path", path).Info("reference photo restored from local cache")
	}
	return result
}

func (r *Resolver) count(op string, result Result) Result {
	metrics.RefPhotoLookups.WithLabelValues(op, result.Availability.String()).Inc()
	return result
}

func checkImage(resp *imrocreq.Response) error {
	if resp.StatusCode != 200 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if !strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "image") {
		return errNotImage
	}
	return nil
}
