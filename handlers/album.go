package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"photoserver/apperr"
	"photoserver/faces"
	"photoserver/logutils"
	"photoserver/models"
	"photoserver/storage"
	"photoserver/utils"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type AlbumInfo struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Photographer string  `json:"photographer,omitempty"`
	Description  *string `json:"description,omitempty"`
	Cover        *string `json:"cover"`
	PhotoCount   int     `json:"photo_count"`
}

type AlbumCreateRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type AlbumDeleteRequest struct {
	AlbumIDs []string `json:"album_ids"`
}

func (h *Handlers) AlbumCreate(c *gin.Context, user *models.User) {
	req := AlbumCreateRequest{}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		badRequest(c, "Missing album name")
		return
	}
	name := strings.TrimSpace(req.Name)
	slug := utils.Slugify(name)
	if slug == "" {
		badRequest(c, "Invalid album name")
		return
	}
	album, err := h.createAlbum(c, user, slug, name, req.Description)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Album created successfully",
		"album":   gin.H{"id": album.Slug, "name": album.Name},
	})
}

// createAlbum inserts the row and provisions the storage placeholder. A row
// whose storage prefix is empty is left over from a partial delete; it is
// removed and creation retried once.
func (h *Handlers) createAlbum(c *gin.Context, user *models.User, slug, name string, description *string) (*models.Album, error) {
	db := h.db(c)
	prefix := storage.AlbumPrefix(user.Username, slug)
	for attempt := 0; attempt < 2; attempt++ {
		existing, err := models.AlbumByOwner(db, user.ID, slug)
		if err == nil {
			keys, err := h.Store.List(c, prefix, "", 1)
			if err != nil {
				return nil, apperr.NewUpstream("Could not verify album storage.", err)
			}
			if len(keys) > 0 {
				return nil, apperr.NewConflict("Album ID already exists for this photographer.")
			}
			logutils.Log.WithFields(logutils.Fields{
				"photographer": user.Username,
				"album":        slug,
			}).Warn("removing album record without storage content")
			if err = models.AlbumDelete(db, &existing); err != nil {
				return nil, err
			}
			continue
		} else if !apperr.Is(err, apperr.NotFound) {
			return nil, err
		}

		album := &models.Album{
			Slug:           slug,
			Name:           name,
			Description:    description,
			PhotographerID: user.ID,
		}
		if err = models.AlbumInsert(db, album); err != nil {
			return nil, err
		}
		if _, err = storage.PutBytes(c, h.Store, h.Config.UploadDir, storage.PlaceholderKey(user.Username, slug), []byte{}); err != nil {
			if derr := models.AlbumDelete(db, album); derr != nil {
				logutils.Log.Errorf("could not roll back album %s/%s: %v", user.Username, slug, derr)
			}
			return nil, apperr.NewUpstream("Failed to create album in storage", err)
		}
		return album, nil
	}
	return nil, apperr.NewConflict("Album ID already exists for this photographer.")
}

func (h *Handlers) AlbumList(c *gin.Context, user *models.User) {
	var (
		albums []AlbumInfo
		err    error
	)
	if user.Role == models.RolePhotographer {
		albums, err = h.photographerAlbums(c, user)
	} else {
		albums, err = h.accessibleAlbums(c, user)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, albums)
}

// photographerAlbums lists album folders in storage and decorates them with the stored names
func (h *Handlers) photographerAlbums(c *gin.Context, user *models.User) ([]AlbumInfo, error) {
	folders, err := h.Store.List(c, storage.PhotographerPrefix(user.Username), "/", storage.DefaultListLimit)
	if err != nil {
		return nil, apperr.NewUpstream("Could not retrieve albums.", err)
	}
	rows, err := models.AlbumsForPhotographer(h.db(c), user.ID)
	if err != nil {
		return nil, err
	}
	bySlug := lo.KeyBy(rows, func(a models.Album) string { return a.Slug })

	result := []AlbumInfo{}
	for _, folder := range folders {
		if !strings.HasSuffix(folder, "/") {
			continue
		}
		slug := storage.BaseName(folder)
		if slug == "" {
			continue
		}
		info := AlbumInfo{ID: slug, Name: utils.TitleFromSlug(slug)}
		if row, ok := bySlug[slug]; ok {
			if row.Name != "" {
				info.Name = row.Name
			}
			info.Description = row.Description
		}
		if err = h.fillPhotos(c, &info, folder); err != nil {
			return nil, err
		}
		result = append(result, info)
	}
	return result, nil
}

func (h *Handlers) accessibleAlbums(c *gin.Context, user *models.User) ([]AlbumInfo, error) {
	grants, err := models.AccessibleAlbums(h.db(c), user.ID)
	if err != nil {
		return nil, err
	}
	result := []AlbumInfo{}
	for _, g := range grants {
		if g.Photographer == "" || g.AlbumID == "" {
			continue
		}
		info := AlbumInfo{
			ID:           g.AlbumID,
			Name:         g.Name,
			Photographer: g.Photographer,
		}
		if info.Name == "" {
			info.Name = utils.TitleFromSlug(g.AlbumID)
		}
		if err = h.fillPhotos(c, &info, storage.AlbumPrefix(g.Photographer, g.AlbumID)); err != nil {
			return nil, err
		}
		result = append(result, info)
	}
	return result, nil
}

// fillPhotos resolves photo count and cover from a live listing
func (h *Handlers) fillPhotos(ctx context.Context, info *AlbumInfo, prefix string) error {
	photos, err := storage.ListPhotos(ctx, h.Store, prefix)
	if err != nil {
		return apperr.NewUpstream("Could not retrieve albums.", err)
	}
	info.PhotoCount = len(photos)
	if len(photos) > 0 {
		cover := h.Store.URLFor(photos[0])
		info.Cover = &cover
	}
	return nil
}

func (h *Handlers) AlbumDeleteBatch(c *gin.Context, user *models.User) {
	req := AlbumDeleteRequest{}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.AlbumIDs) == 0 {
		badRequest(c, "album_ids is required.")
		return
	}
	result := BatchResponse{Errors: []string{}}
	for _, slug := range lo.Uniq(req.AlbumIDs) {
		errs := h.deleteAlbum(c, user, slug)
		if len(errs) == 0 {
			result.DeletedCount++
			continue
		}
		for _, err := range errs {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", slug, err))
		}
	}
	logutils.Log.WithFields(logutils.Fields{
		"photographer": user.Username,
		"deleted":      result.DeletedCount,
		"errors":       len(result.Errors),
	}).Info("album batch delete")
	c.JSON(http.StatusOK, result)
}

// deleteAlbum removes storage objects, the row with its grants and the
// embedding artifact. Every step runs even when an earlier one failed.
func (h *Handlers) deleteAlbum(c *gin.Context, user *models.User, slug string) (errs []error) {
	if !validSegment(slug) {
		return []error{fmt.Errorf("invalid album id")}
	}
	_, failures := storage.DeletePrefix(c, h.Store, storage.AlbumPrefix(user.Username, slug))
	errs = append(errs, failures...)

	album, err := models.AlbumByOwner(h.db(c), user.ID, slug)
	switch {
	case err == nil:
		if err = models.AlbumDelete(h.db(c), &album); err != nil {
			errs = append(errs, err)
		}
	case !apperr.Is(err, apperr.NotFound):
		errs = append(errs, err)
	}

	artifact := h.Config.EmbeddingsPrefix + faces.EmbeddingArtifact(user.Username, slug)
	if err = h.Store.Delete(c, artifact); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func (h *Handlers) AlbumShare(c *gin.Context, user *models.User) {
	photographer, album := c.Param("photographer"), c.Param("album")
	if !validSegment(photographer) || !validSegment(album) {
		badRequest(c, "Invalid album.")
		return
	}
	link := func(kind string) string {
		return fmt.Sprintf("%s/event.html?photographer=%s&album=%s&type=%s",
			h.baseURL(c), url.QueryEscape(photographer), url.QueryEscape(album), kind)
	}
	c.JSON(http.StatusOK, gin.H{
		"vip_link":         link("vip"),
		"full_access_link": link("full"),
	})
}
