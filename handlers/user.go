package handlers

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/mail"
	"strings"

	"photoserver/apperr"
	"photoserver/auth"
	"photoserver/logutils"
	"photoserver/models"
	"photoserver/storage"
	"photoserver/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxUsernameLength = 80

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type VIPLoginRequest struct {
	Email string `json:"email"`
}

type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type SessionResponse struct {
	Token       string      `json:"token"`
	Username    string      `json:"username"`
	Role        models.Role `json:"role"`
	RefPhotoURL *string     `json:"ref_photo_url"`
}

type VerifyResponse struct {
	Valid       bool        `json:"valid"`
	Username    string      `json:"username"`
	Role        models.Role `json:"role"`
	RefPhotoURL *string     `json:"ref_photo_url"`
}

func (h *Handlers) session(c *gin.Context, user *models.User) (SessionResponse, error) {
	token, err := h.Tokens.IssueToken(user.Username, user.Role)
	if err != nil {
		return SessionResponse{}, err
	}
	return SessionResponse{
		Token:       token,
		Username:    user.Username,
		Role:        user.Role,
		RefPhotoURL: h.Refs.URL(c, user.ReferencePhoto()),
	}, nil
}

// storeReferencePhoto validates, downsizes and uploads a reference photo.
// The bytes are kept in the local cache as well so the photo can be restored later.
func (h *Handlers) storeReferencePhoto(c *gin.Context, username string, file *multipart.FileHeader) (string, error) {
	if !utils.AllowedImage(file.Filename) {
		return "", apperr.NewValidation("Invalid form data or file type.")
	}
	if file.Size > h.Config.MaxUploadBytes() {
		return "", apperr.NewValidation("File is too large.")
	}
	src, err := file.Open()
	if err != nil {
		return "", apperr.Wrap(apperr.Validation, "Could not read uploaded file.", err)
	}
	defer src.Close()
	img, err := utils.NormalizeImage(uint(h.Config.RefPhotoMaxDim), io.LimitReader(src, h.Config.MaxUploadBytes()))
	if err != nil {
		return "", apperr.Wrap(apperr.Validation, "Uploaded file is not a valid image.", err)
	}
	if img.Resized {
		logutils.Log.WithField("user", username).Debugf("reference photo resized from %dx%d", img.OldX, img.OldY)
	}

	name := utils.ReplaceExt(utils.SecureFilename(file.Filename), img.Ext)
	key := storage.ProfileKey(username, uuid.NewString()+"_"+name)
	if _, err = storage.PutBytes(c, h.Store, h.Config.UploadDir, key, img.Data); err != nil {
		return "", apperr.NewUpstream("Could not save reference photo.", err)
	}
	if err = h.Refs.Remember(key, img.Data); err != nil {
		logutils.Log.WithField("key", key).Warnf("could not cache reference photo: %v", err)
	}
	return key, nil
}

// discardReferencePhoto rolls back storeReferencePhoto
func (h *Handlers) discardReferencePhoto(ctx context.Context, key string) {
	if err := h.Store.Delete(ctx, key); err != nil {
		logutils.Log.WithField("key", key).Warnf("could not remove reference photo: %v", err)
	}
	h.Refs.Forget(key)
}

func (h *Handlers) Signup(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")
	if username == "" || password == "" {
		badRequest(c, "Username and password are required.")
		return
	}
	if len(username) > maxUsernameLength || !validSegment(username) || utils.SecureFilename(username) != username {
		badRequest(c, "Invalid username.")
		return
	}
	file, err := c.FormFile("ref_photo")
	if err != nil {
		badRequest(c, "A reference photo is required for signup.")
		return
	}
	if _, err = models.UserByUsername(h.db(c), username); err == nil {
		writeError(c, apperr.NewConflict("Username already exists."))
		return
	} else if !apperr.Is(err, apperr.NotFound) {
		writeError(c, err)
		return
	}

	key, err := h.storeReferencePhoto(c, username, file)
	if err != nil {
		writeError(c, err)
		return
	}
	if _, err = models.UserCreate(h.db(c), username, password, models.RoleAttendee, key); err != nil {
		h.discardReferencePhoto(c, key)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, MessageResponse{"User registered successfully!"})
}

func (h *Handlers) Login(c *gin.Context) {
	req := LoginRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Username and password are required.")
		return
	}
	user, err := models.UserLogin(h.db(c), req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	resp, err := h.session(c, &user)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) Verify(c *gin.Context) {
	user, _, err := auth.Authenticate(c, h.DB, h.Tokens)
	if err != nil {
		c.JSON(apperr.Status(apperr.KindOf(err)), gin.H{"valid": false, "error": apperr.Message(err)})
		return
	}
	c.JSON(http.StatusOK, VerifyResponse{
		Valid:       true,
		Username:    user.Username,
		Role:        user.Role,
		RefPhotoURL: h.Refs.URL(c, user.ReferencePhoto()),
	})
}

func (h *Handlers) VIPRegister(c *gin.Context) {
	name := strings.TrimSpace(c.PostForm("name"))
	email := strings.ToLower(strings.TrimSpace(c.PostForm("email")))
	if name == "" || email == "" {
		badRequest(c, "Name and email are required.")
		return
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		badRequest(c, "Invalid email address.")
		return
	}
	file, err := c.FormFile("ref_photo")
	if err != nil {
		badRequest(c, "A reference photo is required.")
		return
	}
	if _, err = models.UserByEmail(h.db(c), email); err == nil {
		writeError(c, apperr.NewConflict("An account with this email already exists."))
		return
	} else if !apperr.Is(err, apperr.NotFound) {
		writeError(c, err)
		return
	}
	username, err := models.UniqueUsername(h.db(c), name)
	if err != nil {
		writeError(c, err)
		return
	}

	key, err := h.storeReferencePhoto(c, username, file)
	if err != nil {
		writeError(c, err)
		return
	}
	user, err := models.UserCreateVIP(h.db(c), username, email, key)
	if err != nil {
		h.discardReferencePhoto(c, key)
		writeError(c, err)
		return
	}
	resp, err := h.session(c, &user)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handlers) VIPLogin(c *gin.Context) {
	req := VIPLoginRequest{}
	_ = c.ShouldBindJSON(&req)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		badRequest(c, "Email is required.")
		return
	}
	user, err := models.UserByEmail(h.db(c), email)
	if err != nil {
		writeError(c, err)
		return
	}
	if user.Role != models.RoleVIPAttendee || !user.IsActive {
		writeError(c, apperr.NewForbidden("This email is not registered as a VIP account."))
		return
	}
	resp, err := h.session(c, &user)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateReferencePhoto replaces the caller's reference photo. The old photo is
// removed once the new one is stored.
func (h *Handlers) UpdateReferencePhoto(c *gin.Context, user *models.User) {
	file, err := c.FormFile("ref_photo")
	if err != nil {
		badRequest(c, "A reference photo is required.")
		return
	}
	previous := user.ReferencePhoto()
	key, err := h.storeReferencePhoto(c, user.Username, file)
	if err != nil {
		writeError(c, err)
		return
	}
	if err = user.SetReferencePhoto(h.db(c), key, ""); err != nil {
		h.discardReferencePhoto(c, key)
		writeError(c, err)
		return
	}
	if previous != "" && previous != key {
		h.discardReferencePhoto(c, previous)
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       "Reference photo updated successfully.",
		"ref_photo_url": h.Store.URLFor(key),
	})
}

func (h *Handlers) ChangePassword(c *gin.Context, user *models.User) {
	req := PasswordChangeRequest{}
	if err := c.ShouldBindJSON(&req); err != nil || req.NewPassword == "" {
		badRequest(c, "A new password is required.")
		return
	}
	// accounts created without a password (VIP, Google) may set one directly
	if user.HasPassword() && !user.CheckPassword(req.CurrentPassword) {
		writeError(c, apperr.New(apperr.InvalidCredentials, "Current password is incorrect."))
		return
	}
	if err := user.SetPassword(h.db(c), req.NewPassword); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{"Password updated successfully."})
}

func (h *Handlers) GoogleLogin(c *gin.Context) {
	c.JSON(http.StatusOK, MessageResponse{"This is a placeholder for Google login. In a real app, you'd be redirected to Google."})
}

// GoogleCallback simulates the identity provider answer. Only mounted in debug mode.
func (h *Handlers) GoogleCallback(c *gin.Context) {
	googleID := c.DefaultQuery("google_id", "simulated_google_id_"+uuid.NewString())
	name := c.DefaultQuery("name", "google_user_"+uuid.NewString()[:6])
	email := c.Query("email")

	user, created, err := models.UserFromExternalIdentity(h.db(c), googleID, name, email)
	if err != nil {
		writeError(c, err)
		return
	}
	if created || user.Role == models.RolePendingPhoto {
		token, err := h.Tokens.IssueToken(user.Username, models.RolePendingPhoto)
		if err != nil {
			writeError(c, err)
			return
		}
		c.Redirect(http.StatusFound, "/google_signup_finalize.html?temp_token="+token)
		return
	}
	resp, err := h.session(c, &user)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Logged in successfully!",
		"token":    resp.Token,
		"username": resp.Username,
		"role":     resp.Role,
	})
}

// GoogleFinalize completes an external signup by uploading the reference photo
func (h *Handlers) GoogleFinalize(c *gin.Context, user *models.User) {
	file, err := c.FormFile("ref_photo")
	if err != nil {
		badRequest(c, "A reference photo is required.")
		return
	}
	key, err := h.storeReferencePhoto(c, user.Username, file)
	if err != nil {
		writeError(c, err)
		return
	}
	if err = user.SetReferencePhoto(h.db(c), key, models.RoleAttendee); err != nil {
		h.discardReferencePhoto(c, key)
		writeError(c, err)
		return
	}
	token, err := h.Tokens.IssueToken(user.Username, user.Role)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Signup complete!",
		"token":    token,
		"username": user.Username,
		"role":     user.Role,
	})
}
