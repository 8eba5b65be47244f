package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"photoserver/apperr"
	"photoserver/faces"
	"photoserver/logutils"
	"photoserver/models"
	"photoserver/storage"
	"photoserver/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type PhotoInfo struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

type PhotoDeleteRequest struct {
	PhotoIDs []string `json:"photo_ids"`
}

func uploadError(c *gin.Context, err error) {
	if apperr.KindOf(err) == apperr.Internal {
		logutils.Log.WithField("path", c.Request.URL.Path).Errorf("upload failed: %v", err)
	}
	c.JSON(apperr.Status(apperr.KindOf(err)), gin.H{"success": false, "error": apperr.Message(err)})
}

func (h *Handlers) photoInfos(keys []string) []PhotoInfo {
	return lo.Map(keys, func(key string, _ int) PhotoInfo {
		name := storage.BaseName(key)
		return PhotoInfo{ID: name, URL: h.Store.URLFor(key), Name: name}
	})
}

// PhotoUpload stores one photo in an album and feeds it to the face matching
// service. Nothing is written before the file passes validation.
func (h *Handlers) PhotoUpload(c *gin.Context, user *models.User) {
	file, err := c.FormFile("file")
	if err != nil {
		uploadError(c, apperr.NewValidation("No file part"))
		return
	}
	slug := c.PostForm("album")
	if slug == "" {
		uploadError(c, apperr.NewValidation("Album ID is missing"))
		return
	}
	if !utils.AllowedImage(file.Filename) {
		uploadError(c, apperr.NewValidation("File type not allowed or no file submitted."))
		return
	}
	if file.Size > h.Config.MaxUploadBytes() {
		uploadError(c, apperr.NewValidation("File is too large."))
		return
	}
	album, err := models.AlbumByOwner(h.db(c), user.ID, slug)
	if err != nil {
		uploadError(c, err)
		return
	}

	originalName := utils.SecureFilename(file.Filename)
	uniqueName := uuid.NewString() + "_" + originalName
	if err = os.MkdirAll(h.Config.UploadDir, 0o755); err != nil {
		uploadError(c, err)
		return
	}
	staged := filepath.Join(h.Config.UploadDir, uniqueName)
	defer os.Remove(staged)
	if err = c.SaveUploadedFile(file, staged); err != nil {
		uploadError(c, err)
		return
	}

	key := storage.PhotoKey(user.Username, slug, uniqueName)
	publicURL, err := h.Store.Put(c, staged, key)
	if err != nil {
		uploadError(c, apperr.NewUpstream("Failed to upload to storage.", err))
		return
	}
	if err = album.RecordUpload(h.db(c), key); err != nil {
		logutils.Log.WithField("key", key).Warnf("could not update album counters: %v", err)
	}

	var embeddings json.RawMessage
	resp, err := h.ML.GenerateEmbeddings(c, []string{publicURL}, faces.EmbeddingArtifact(user.Username, slug))
	if err != nil {
		logutils.Log.WithField("key", key).Warnf("embedding generation failed: %v", err)
		embeddings, _ = json.Marshal(gin.H{"error": apperr.Message(err)})
	} else {
		embeddings = resp.JSON()
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"name":       originalName,
		"url":        publicURL,
		"id":         uniqueName,
		"embeddings": embeddings,
	})
}

func (h *Handlers) PhotoList(c *gin.Context, user *models.User) {
	slug := c.Param("id")
	if !validSegment(slug) {
		badRequest(c, "Invalid album.")
		return
	}
	keys, err := storage.ListPhotos(c, h.Store, storage.AlbumPrefix(user.Username, slug))
	if err != nil {
		writeError(c, apperr.NewUpstream("Failed to fetch photos.", err))
		return
	}
	c.JSON(http.StatusOK, h.photoInfos(keys))
}

// PhotoDeleteBatch removes photos from storage, then from the embedding
// artifact, and finally refreshes the cached album counters
func (h *Handlers) PhotoDeleteBatch(c *gin.Context, user *models.User) {
	slug := c.Param("id")
	req := PhotoDeleteRequest{}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.PhotoIDs) == 0 {
		badRequest(c, "photo_ids is required.")
		return
	}
	if !validSegment(slug) {
		badRequest(c, "Invalid album.")
		return
	}

	result := BatchResponse{Errors: []string{}}
	removed := []string{}
	for _, id := range lo.Uniq(req.PhotoIDs) {
		if !validSegment(id) {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: invalid photo id", id))
			continue
		}
		key := storage.PhotoKey(user.Username, slug, id)
		err := h.Store.Delete(c, key)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", id, err))
			continue
		}
		result.DeletedCount++
		removed = append(removed, h.Store.URLFor(key))
	}

	if len(removed) > 0 {
		if _, err := h.ML.RemoveEmbeddings(c, removed, faces.EmbeddingArtifact(user.Username, slug)); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("embeddings: %s", apperr.Message(err)))
		}
	}

	if album, err := models.AlbumByOwner(h.db(c), user.ID, slug); err == nil {
		keys, err := storage.ListPhotos(c, h.Store, storage.AlbumPrefix(user.Username, slug))
		if err == nil {
			err = album.SyncPhotos(h.db(c), keys)
		}
		if err != nil {
			logutils.Log.WithField("album", slug).Warnf("could not refresh album counters: %v", err)
		}
	}
	c.JSON(http.StatusOK, result)
}
