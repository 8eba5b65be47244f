// Package web serves the single page frontend and, for local storage, the stored files.
package web

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"photoserver/storage"

	"github.com/gin-gonic/gin"
)

const indexFile = "index.html"

// Frontend serves files from Dir, unknown paths fall back to index.html
type Frontend struct {
	Dir string
}

func (f *Frontend) file(name string) (string, bool) {
	full := filepath.Join(f.Dir, filepath.FromSlash(path.Clean("/"+name)))
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return "", false
	}
	return full, true
}

// Serve is meant for NoRoute
func (f *Frontend) Serve(c *gin.Context) {
	p := c.Request.URL.Path
	if strings.HasPrefix(p, "/api/") {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.Status(http.StatusMethodNotAllowed)
		return
	}
	if full, ok := f.file(p); ok {
		c.File(full)
		return
	}
	if full, ok := f.file(indexFile); ok {
		c.File(full)
		return
	}
	c.String(http.StatusNotFound, "not found")
}

func DisallowRobots(c *gin.Context) {
	c.String(http.StatusOK, "User-agent: *\nDisallow: /api/\nDisallow: /files/\n")
}

// Files serves objects of a local object store, standing in for the public bucket URL
func Files(store *storage.DiskStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimPrefix(c.Param("key"), "/")
		if !store.Exists(key) {
			c.Status(http.StatusNotFound)
			return
		}
		store.Serve(key, c.Request, c.Writer)
	}
}
