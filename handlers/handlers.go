package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"photoserver/apperr"
	"photoserver/auth"
	"photoserver/config"
	"photoserver/faces"
	"photoserver/logutils"
	"photoserver/refphoto"
	"photoserver/storage"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Response struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Code    string `json:"code,omitempty"`
}

// BatchResponse reports best-effort batch deletes
type BatchResponse struct {
	DeletedCount int      `json:"deleted_count"`
	Errors       []string `json:"errors"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// FaceMatcher is the part of the face matching service the handlers use
type FaceMatcher interface {
	GenerateEmbeddings(ctx context.Context, urls []string, artifact string) (*faces.Response, error)
	RemoveEmbeddings(ctx context.Context, urls []string, artifact string) (*faces.Response, error)
	FindSimilar(ctx context.Context, image []byte, artifact string) (*faces.Response, error)
}

// Handlers holds everything a request needs. One instance is built in main
// and shared by all requests.
type Handlers struct {
	DB     *gorm.DB
	Config *config.Config
	Store  storage.ObjectStore
	Refs   *refphoto.Resolver
	ML     FaceMatcher
	Tokens *auth.TokenManager
}

func (h *Handlers) db(c *gin.Context) *gorm.DB {
	return h.DB.WithContext(c)
}

func writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	response := Response{Error: apperr.Message(err)}
	switch kind {
	case apperr.Internal:
		logutils.Log.WithFields(logutils.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}).Errorf("request failed: %v", err)
	case apperr.Upstream:
		if cause := errors.Unwrap(err); cause != nil {
			response.Details = cause.Error()
		}
	}
	c.JSON(apperr.Status(kind), response)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{Error: message})
}

// validSegment guards path parameters that end up in storage keys
func validSegment(s string) bool {
	return s != "" && !strings.Contains(s, "..") && !strings.ContainsAny(s, "/\\")
}

// baseURL is used for links handed out to users
func (h *Handlers) baseURL(c *gin.Context) string {
	if h.Config.PublicBaseURL != "" {
		return h.Config.PublicBaseURL
	}
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}

func (h *Handlers) Healthz(c *gin.Context) {
	sqlDB, err := h.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c)
	}
	if err != nil {
		logutils.Log.Errorf("health check failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
