package handlers

import (
	"net/http"

	"photoserver/apperr"
	"photoserver/faces"
	"photoserver/logutils"
	"photoserver/metrics"
	"photoserver/models"
	"photoserver/refphoto"
	"photoserver/storage"

	"github.com/gin-gonic/gin"
)

type GrantAccessRequest struct {
	Photographer string `json:"photographer"`
	AlbumID      string `json:"album_id"`
}

const referencePhotoMissing = "reference_photo_missing"

func (h *Handlers) AttendeeAlbums(c *gin.Context, user *models.User) {
	albums, err := h.accessibleAlbums(c, user)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, albums)
}

// EventPhotos is public, it backs the full access share link
func (h *Handlers) EventPhotos(c *gin.Context) {
	photographer, slug := c.Param("photographer"), c.Param("album")
	if !validSegment(photographer) || !validSegment(slug) {
		badRequest(c, "Invalid album.")
		return
	}
	keys, err := storage.ListPhotos(c, h.Store, storage.AlbumPrefix(photographer, slug))
	if err != nil {
		writeError(c, apperr.NewUpstream("Could not retrieve event photos.", err))
		return
	}
	c.JSON(http.StatusOK, h.photoInfos(keys))
}

// FindMyPhotos sends the caller's reference photo to the face matching service
// and passes its answer through untouched
func (h *Handlers) FindMyPhotos(c *gin.Context, user *models.User) {
	photographer, slug := c.Param("photographer"), c.Param("album")
	if !validSegment(photographer) || !validSegment(slug) {
		badRequest(c, "Invalid album.")
		return
	}
	if user.ReferencePhoto() == "" {
		c.JSON(http.StatusNotFound, Response{Error: "Reference photo not found for user.", Code: referencePhotoMissing})
		return
	}
	image, result, err := h.Refs.Fetch(c, user.ReferencePhoto())
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			c.JSON(http.StatusNotFound, Response{Error: apperr.Message(err), Code: referencePhotoMissing})
			return
		}
		writeError(c, err)
		return
	}
	if result.Availability == refphoto.Recovered {
		logutils.Log.WithFields(logutils.Fields{
			"user":     user.Username,
			"restored": result.RestoreErr == nil,
		}).Info("reference photo served from local cache")
	}

	resp, err := h.ML.FindSimilar(c, image, faces.EmbeddingArtifact(photographer, slug))
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, Response{
			Error:   "Failed to connect to ML service or download reference photo.",
			Details: err.Error(),
		})
		return
	}
	recordMatches(user, photographer, slug, resp)
	c.Data(resp.StatusCode, "application/json", resp.JSON())
}

// recordMatches only observes the answer, the client still gets it untouched
func recordMatches(user *models.User, photographer, slug string, resp *faces.Response) {
	matches, err := resp.Matches()
	if err != nil {
		metrics.FaceMatches.WithLabelValues("unparsed").Inc()
		logutils.Log.WithField("album", photographer+"/"+slug).Warnf("unexpected face matching answer: %v", err)
		return
	}
	result := "no_match"
	if matches.MatchCount > 0 || len(matches.Matches) > 0 {
		result = "matched"
	}
	metrics.FaceMatches.WithLabelValues(result).Inc()
	logutils.Log.WithFields(logutils.Fields{
		"user":        user.Username,
		"album":       photographer + "/" + slug,
		"match_count": matches.MatchCount,
	}).Debug("face matching finished")
}

func (h *Handlers) GrantAccess(c *gin.Context, user *models.User) {
	req := GrantAccessRequest{}
	if err := c.ShouldBindJSON(&req); err != nil || req.Photographer == "" || req.AlbumID == "" {
		badRequest(c, "Photographer and Album ID are required.")
		return
	}
	album, err := models.AlbumByPhotographer(h.db(c), req.Photographer, req.AlbumID)
	if err != nil {
		writeError(c, err)
		return
	}
	granted, err := models.GrantAccess(h.db(c), user.ID, album.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !granted {
		c.JSON(http.StatusOK, MessageResponse{"Access already granted."})
		return
	}
	c.JSON(http.StatusOK, MessageResponse{"Access granted."})
}
