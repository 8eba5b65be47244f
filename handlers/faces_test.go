package handlers

import (
	"context"
	"net/http"
	"testing"

	"photoserver/metrics"
	"photoserver/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrantAccessIdempotent(t *testing.T) {
	e := newTestEnv(t)
	_, alice := e.user(t, "alice", models.RolePhotographer)
	bob, bobToken := e.user(t, "bob", models.RoleAttendee)
	e.createAlbum(t, alice, "Wedding 2024")
	e.upload(t, alice, "wedding-2024", "photo1.jpg")

	payload := gin.H{"photographer": "alice", "album_id": "wedding-2024"}
	w := e.json(t, http.MethodPost, "/api/grant-access", bobToken, payload)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Access granted.", decode[MessageResponse](t, w).Message)
	w = e.json(t, http.MethodPost, "/api/grant-access", bobToken, payload)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Access already granted.", decode[MessageResponse](t, w).Message)

	var grants int64
	require.NoError(t, e.db.Model(&models.AlbumAccess{}).Where("user_id = ?", bob.ID).Count(&grants).Error)
	assert.Equal(t, int64(1), grants)

	for _, path := range []string{"/api/attendee/albums", "/api/albums"} {
		w = e.do(http.MethodGet, path, bobToken, nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		albums := decode[[]AlbumInfo](t, w)
		require.Len(t, albums, 1, path)
		assert.Equal(t, "wedding-2024", albums[0].ID)
		assert.Equal(t, "Wedding 2024", albums[0].Name)
		assert.Equal(t, "alice", albums[0].Photographer)
		assert.Equal(t, 1, albums[0].PhotoCount)
	}

	w = e.json(t, http.MethodPost, "/api/grant-access", bobToken, gin.H{"photographer": "alice", "album_id": "nope"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = e.json(t, http.MethodPost, "/api/grant-access", bobToken, gin.H{"photographer": "alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventPhotosIsPublic(t *testing.T) {
	e := newTestEnv(t)
	_, alice := e.user(t, "alice", models.RolePhotographer)
	e.createAlbum(t, alice, "Gala")
	e.upload(t, alice, "gala", "one.jpg")

	w := e.do(http.MethodGet, "/api/event/alice/gala", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]PhotoInfo](t, w), 1)

	w = e.do(http.MethodGet, "/api/event/alice/unknown", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]PhotoInfo](t, w))
}

func TestFindMyPhotos(t *testing.T) {
	e := newTestEnv(t)
	w := e.multipart(t, "/api/auth/signup", "", map[string]string{"username": "bob", "password": "pw"},
		formFile{"ref_photo", "face.png", testPNG(t)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	token, err := e.h.Tokens.IssueToken("bob", models.RoleAttendee)
	require.NoError(t, err)
	user, err := models.UserByUsername(e.db, "bob")
	require.NoError(t, err)
	path := "/api/find-my-photos/alice/wedding-2024"
	matched := testutil.ToFloat64(metrics.FaceMatches.WithLabelValues("matched"))

	w = e.do(http.MethodGet, path, token, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, e.ml.response, w.Body.String())
	assert.Equal(t, matched+1, testutil.ToFloat64(metrics.FaceMatches.WithLabelValues("matched")))

	// remote copy lost: served from the local cache and written back
	require.NoError(t, e.store.Delete(context.Background(), user.ReferencePhoto()))
	w = e.do(http.MethodGet, path, token, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, e.store.Exists(user.ReferencePhoto()))
	assert.Equal(t, 2, e.ml.findCount())

	e.ml.setDown(true)
	w = e.do(http.MethodGet, path, token, nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	e.ml.setDown(false)

	// gone everywhere
	require.NoError(t, e.store.Delete(context.Background(), user.ReferencePhoto()))
	e.h.Refs.Forget(user.ReferencePhoto())
	w = e.do(http.MethodGet, path, token, nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, referencePhotoMissing, decode[Response](t, w).Code)

	_, photographer := e.user(t, "alice", models.RolePhotographer)
	w = e.do(http.MethodGet, path, photographer, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, referencePhotoMissing, decode[Response](t, w).Code)
}

func TestFindMyPhotosPassesUnexpectedAnswersThrough(t *testing.T) {
	e := newTestEnv(t)
	e.ml.mu.Lock()
	e.ml.response = `["not","a","match","object"]`
	e.ml.mu.Unlock()
	w := e.multipart(t, "/api/auth/signup", "", map[string]string{"username": "bob", "password": "pw"},
		formFile{"ref_photo", "face.png", testPNG(t)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	token, err := e.h.Tokens.IssueToken("bob", models.RoleAttendee)
	require.NoError(t, err)
	unparsed := testutil.ToFloat64(metrics.FaceMatches.WithLabelValues("unparsed"))

	w = e.do(http.MethodGet, "/api/find-my-photos/alice/wedding-2024", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `["not","a","match","object"]`, w.Body.String())
	assert.Equal(t, unparsed+1, testutil.ToFloat64(metrics.FaceMatches.WithLabelValues("unparsed")))
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(http.MethodGet, "/healthz", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
