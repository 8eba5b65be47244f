package handlers

import (
	"photoserver/auth"
	"photoserver/models"

	"github.com/gin-gonic/gin"
)

// Register mounts the JSON API on base
func (h *Handlers) Register(base gin.IRouter) {
	router := &auth.Router{Base: base, DB: h.DB, Tokens: h.Tokens}
	finalized := models.FinalizedRoles
	photographer := models.RolePhotographer

	// Auth
	base.POST("/api/auth/signup", h.Signup)
	base.POST("/api/auth/login", h.Login)
	base.GET("/api/auth/verify", h.Verify)
	base.POST("/api/auth/vip-register", h.VIPRegister)
	base.POST("/api/auth/vip-login", h.VIPLogin)
	router.POST("/api/auth/vip-update-photo", h.UpdateReferencePhoto, models.RoleVIPAttendee)
	base.GET("/api/auth/google/login", h.GoogleLogin)
	if h.Config.DebugMode {
		base.GET("/api/auth/google/callback", h.GoogleCallback)
	}
	router.POST("/api/auth/google/finalize", h.GoogleFinalize, models.RolePendingPhoto)

	// Profile
	router.POST("/api/profile/photo", h.UpdateReferencePhoto, finalized...)
	router.POST("/api/profile/password", h.ChangePassword, finalized...)

	// Albums
	router.POST("/api/create-album", h.AlbumCreate, photographer)
	router.GET("/api/albums", h.AlbumList, finalized...)
	router.DELETE("/api/albums/batch", h.AlbumDeleteBatch, photographer)
	router.GET("/api/album/:photographer/:album/share", h.AlbumShare, finalized...)

	// Photos
	router.POST("/api/upload-single-file", h.PhotoUpload, photographer)
	router.GET("/api/albums/:id/photos", h.PhotoList, photographer)
	router.DELETE("/api/albums/:id/photos/batch", h.PhotoDeleteBatch, photographer)

	// Attendees
	router.GET("/api/attendee/albums", h.AttendeeAlbums, finalized...)
	base.GET("/api/event/:photographer/:album", h.EventPhotos)
	router.GET("/api/find-my-photos/:photographer/:album", h.FindMyPhotos, finalized...)
	router.POST("/api/grant-access", h.GrantAccess, finalized...)

	base.GET("/healthz", h.Healthz)
}
