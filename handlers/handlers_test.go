package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"photoserver/auth"
	"photoserver/config"
	"photoserver/faces"
	"photoserver/models"
	"photoserver/refphoto"
	"photoserver/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeML records calls made to the face matching service
type fakeML struct {
	mu       sync.Mutex
	calls    map[string][]faces.EmbeddingRequest
	finds    int
	down     bool
	response string
}

func (f *fakeML) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.down {
			http.Error(w, "unavailable", http.StatusBadGateway)
			return
		}
		op := strings.Trim(r.URL.Path, "/")
		w.Header().Set("Content-Type", "application/json")
		if op == "find_similar_faces" {
			f.finds++
			_, _ = w.Write([]byte(f.response))
			return
		}
		var body faces.EmbeddingRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.calls[op] = append(f.calls[op], body)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
}

func (f *fakeML) requests(op string) []faces.EmbeddingRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]faces.EmbeddingRequest{}, f.calls[op]...)
}

func (f *fakeML) findCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finds
}

func (f *fakeML) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

type testEnv struct {
	engine *gin.Engine
	h      *Handlers
	db     *gorm.DB
	store  *storage.DiskStorage
	cache  *storage.DiskStorage
	ml     *fakeML
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))

	// objects are served over HTTP the same way the public bucket would serve them
	storeDir := t.TempDir()
	bucket := httptest.NewServer(http.FileServer(http.Dir(storeDir)))
	t.Cleanup(bucket.Close)
	store := storage.NewDiskStorage(storeDir, bucket.URL)
	cache := storage.NewDiskStorage(t.TempDir(), "")

	ml := &fakeML{calls: map[string][]faces.EmbeddingRequest{}, response: `{"match_count":1,"matches":[{"url":"https://cdn/a.jpg","score":0.91}]}`}
	mlServer := httptest.NewServer(ml.handler())
	t.Cleanup(mlServer.Close)

	cfg := &config.Config{
		DebugMode:        true,
		PublicBaseURL:    "https://photos.example.com",
		EmbeddingsPrefix: "embeddings/",
		UploadDir:        t.TempDir(),
		MaxUploadMB:      5,
		RefPhotoMaxDim:   1600,
	}
	h := &Handlers{
		DB:     db,
		Config: cfg,
		Store:  store,
		Refs:   refphoto.NewResolver(store, cache),
		ML:     faces.NewClient(mlServer.URL+"/", ""),
		Tokens: auth.NewTokenManager("test-secret", time.Hour),
	}
	engine := gin.New()
	engine.MaxMultipartMemory = cfg.MaxUploadBytes()
	h.Register(engine)
	return &testEnv{engine: engine, h: h, db: db, store: store, cache: cache, ml: ml}
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		img.Set(x, x, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type formFile struct {
	field, name string
	data        []byte
}

func (e *testEnv) do(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func (e *testEnv) json(t *testing.T, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return e.do(method, path, token, bytes.NewReader(data), "application/json")
}

func (e *testEnv) multipart(t *testing.T, path, token string, fields map[string]string, files ...formFile) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return e.do(http.MethodPost, path, token, &buf, mw.FormDataContentType())
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var result T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result), w.Body.String())
	return result
}

func (e *testEnv) user(t *testing.T, username string, role models.Role) (models.User, string) {
	t.Helper()
	u, err := models.UserCreate(e.db, username, "secret-pw", role, "")
	require.NoError(t, err)
	token, err := e.h.Tokens.IssueToken(username, role)
	require.NoError(t, err)
	return u, token
}

func (e *testEnv) createAlbum(t *testing.T, token, name string) {
	t.Helper()
	w := e.json(t, http.MethodPost, "/api/create-album", token, gin.H{"name": name})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func (e *testEnv) upload(t *testing.T, token, album, name string) map[string]any {
	t.Helper()
	w := e.multipart(t, "/api/upload-single-file", token, map[string]string{"album": album},
		formFile{"file", name, []byte("photo-bytes")})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[map[string]any](t, w)
}
