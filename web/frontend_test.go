package web

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"photoserver/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestFrontend(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("index"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "event.html"), []byte("event"), 0o644))

	engine := gin.New()
	engine.NoRoute((&Frontend{Dir: dir}).Serve)

	assert.Equal(t, "event", get(engine, "/event.html").Body.String())
	assert.Equal(t, "index", get(engine, "/dashboard/albums").Body.String())
	assert.Equal(t, "index", get(engine, "/../../etc/passwd").Body.String())
	assert.Equal(t, http.StatusNotFound, get(engine, "/api/unknown").Code)
}

func TestFiles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := storage.NewDiskStorage(t.TempDir(), "/files")
	_, err := store.Save("event_albums/alice/w/a.jpg", bytes.NewBufferString("jpeg"))
	require.NoError(t, err)

	engine := gin.New()
	engine.GET("/files/*key", Files(store))
	engine.GET("/robots.txt", DisallowRobots)

	w := get(engine, "/files/event_albums/alice/w/a.jpg")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jpeg", w.Body.String())
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, http.StatusNotFound, get(engine, "/files/missing.jpg").Code)
	assert.Contains(t, get(engine, "/robots.txt").Body.String(), "Disallow")
}
