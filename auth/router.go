package auth

import (
	"net/http"
	"slices"
	"strings"

	"photoserver/apperr"
	"photoserver/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// User is authenticated and posseses the required role
type HandlerFunc func(c *gin.Context, user *models.User)

// Router is a wrapper class that adds bearer token checks + User pre-loading
type Router struct {
	Base   gin.IRouter
	DB     *gorm.DB
	Tokens *TokenManager
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header
func BearerToken(c *gin.Context) string {
	t := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(t) < 2 || t[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(t[1])
}

// Authenticate verifies the bearer token and loads its user
func Authenticate(c *gin.Context, db *gorm.DB, tokens *TokenManager) (*models.User, Identity, error) {
	token := BearerToken(c)
	if token == "" {
		return nil, Identity{}, apperr.New(apperr.InvalidToken, "Authentication required")
	}
	identity, err := tokens.VerifyToken(token)
	if err != nil {
		return nil, identity, err
	}
	user, err := models.UserByUsername(db.WithContext(c), identity.Subject)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return nil, identity, apperr.New(apperr.InvalidToken, "User not found")
		}
		return nil, identity, err
	}
	if !user.IsActive {
		return nil, identity, apperr.New(apperr.InvalidToken, "Account is disabled")
	}
	return &user, identity, nil
}

func (cr *Router) baseExec(c *gin.Context, handler HandlerFunc, allowed []models.Role) {
	user, identity, err := Authenticate(c, cr.DB, cr.Tokens)
	if err != nil {
		c.JSON(apperr.Status(apperr.KindOf(err)), gin.H{"error": apperr.Message(err)})
		return
	}
	// both the token and the stored account must carry an allowed role
	if !slices.Contains(allowed, identity.Role) || !user.HasRole(allowed) {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	}
	handler(c, user)
}

func (cr *Router) POST(path string, handler HandlerFunc, allowed ...models.Role) {
	cr.Base.POST(path, func(c *gin.Context) {
		cr.baseExec(c, handler, allowed)
	})
}

func (cr *Router) GET(path string, handler HandlerFunc, allowed ...models.Role) {
	cr.Base.GET(path, func(c *gin.Context) {
		cr.baseExec(c, handler, allowed)
	})
}

func (cr *Router) DELETE(path string, handler HandlerFunc, allowed ...models.Role) {
	cr.Base.DELETE(path, func(c *gin.Context) {
		cr.baseExec(c, handler, allowed)
	})
}
