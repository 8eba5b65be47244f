package models

import (
	"errors"
	"strings"
	"time"

	"photoserver/apperr"
	"photoserver/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RolePhotographer Role = "photographer"
	RoleAttendee     Role = "attendee"
	RoleVIPAttendee  Role = "vip_attendee"
	RolePendingPhoto Role = "pending_photo" // signed in externally, reference photo not uploaded yet
)

// FinalizedRoles are all roles that completed signup
var FinalizedRoles = []Role{RolePhotographer, RoleAttendee, RoleVIPAttendee}

func (r Role) Valid() bool {
	switch r {
	case RolePhotographer, RoleAttendee, RoleVIPAttendee, RolePendingPhoto:
		return true
	}
	return false
}

type User struct {
	ID           uint64 `gorm:"primaryKey"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Username     string  `gorm:"type:varchar(80);not null;index:uniq_username,unique"`
	Email        *string `gorm:"type:varchar(120);index:uniq_email,unique"`
	PasswordHash *string `gorm:"type:varchar(255)"` // nil for VIP and externally authenticated accounts
	Role         Role    `gorm:"type:varchar(20);not null;default:attendee"`
	RefPhotoPath *string `gorm:"type:varchar(500)"`
	GoogleID     *string `gorm:"type:varchar(100);index:uniq_google_id,unique"`
	IsActive     bool    `gorm:"not null;default:true"`
}

func (u *User) ReferencePhoto() string {
	if u.RefPhotoPath == nil {
		return ""
	}
	return *u.RefPhotoPath
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

func (u *User) HasRole(roles []Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

func (u *User) CheckPassword(plainTextPassword string) bool {
	if !u.HasPassword() {
		return false
	}
	return utils.CheckPassword(*u.PasswordHash, plainTextPassword)
}

func UserCreate(db *gorm.DB, username, plainTextPassword string, role Role, refPhotoPath string) (u User, err error) {
	u.Username = username
	u.Role = role
	u.IsActive = true
	if plainTextPassword != "" {
		hash, err := utils.HashPassword(plainTextPassword)
		if err != nil {
			return u, err
		}
		u.PasswordHash = &hash
	}
	if refPhotoPath != "" {
		u.RefPhotoPath = &refPhotoPath
	}
	if err = db.Create(&u).Error; err != nil {
		if isDuplicate(err) {
			return u, apperr.NewConflict("Username or email already exists.")
		}
		return u, err
	}
	return u, nil
}

// UserCreateVIP registers a password-less VIP account keyed by email.
// username is expected to come from UniqueUsername.
func UserCreateVIP(db *gorm.DB, username, email, refPhotoPath string) (u User, err error) {
	if _, err = UserByEmail(db, email); err == nil {
		return u, apperr.NewConflict("An account with this email already exists.")
	} else if !apperr.Is(err, apperr.NotFound) {
		return u, err
	}
	u = User{
		Username:     username,
		Email:        &email,
		Role:         RoleVIPAttendee,
		RefPhotoPath: &refPhotoPath,
		IsActive:     true,
	}
	if err = db.Create(&u).Error; err != nil {
		if isDuplicate(err) {
			return u, apperr.NewConflict("An account with this email already exists.")
		}
		return u, err
	}
	return u, nil
}

// UserFromExternalIdentity returns the account linked to googleID, creating a
// pending_photo account on first login
func UserFromExternalIdentity(db *gorm.DB, googleID, name, email string) (u User, created bool, err error) {
	err = db.First(&u, "google_id = ?", googleID).Error
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return u, false, err
	}
	username, err := UniqueUsername(db, name)
	if err != nil {
		return u, false, err
	}
	u = User{
		Username: username,
		Role:     RolePendingPhoto,
		GoogleID: &googleID,
		IsActive: true,
	}
	if email != "" {
		u.Email = &email
	}
	if err = db.Create(&u).Error; err != nil {
		if isDuplicate(err) {
			return u, false, apperr.NewConflict("Username or email already exists.")
		}
		return u, false, err
	}
	return u, true, nil
}

func UserByUsername(db *gorm.DB, username string) (u User, err error) {
	err = db.First(&u, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return u, apperr.NewNotFound("User not found.")
	}
	return u, err
}

func UserByEmail(db *gorm.DB, email string) (u User, err error) {
	err = db.First(&u, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return u, apperr.NewNotFound("No account found for this email.")
	}
	return u, err
}

func UserLogin(db *gorm.DB, username, plainTextPassword string) (User, error) {
	u, err := UserByUsername(db, username)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return User{}, apperr.New(apperr.InvalidCredentials, "Invalid credentials")
		}
		return User{}, err
	}
	if !u.IsActive || !u.CheckPassword(plainTextPassword) {
		return User{}, apperr.New(apperr.InvalidCredentials, "Invalid credentials")
	}
	return u, nil
}

// SetReferencePhoto stores the new path and, when role is not empty, promotes the user
func (u *User) SetReferencePhoto(db *gorm.DB, path string, role Role) error {
	updates := map[string]any{"ref_photo_path": path}
	if role != "" {
		updates["role"] = role
	}
	if err := db.Model(u).Updates(updates).Error; err != nil {
		return err
	}
	u.RefPhotoPath = &path
	if role != "" {
		u.Role = role
	}
	return nil
}

func (u *User) SetPassword(db *gorm.DB, plainTextPassword string) error {
	hash, err := utils.HashPassword(plainTextPassword)
	if err != nil {
		return err
	}
	if err = db.Model(u).Update("password_hash", hash).Error; err != nil {
		return err
	}
	u.PasswordHash = &hash
	return nil
}

// UniqueUsername derives a free username from a display name: lower case,
// spaces become underscores, a random suffix is added on collision
func UniqueUsername(db *gorm.DB, name string) (string, error) {
	base := strings.ToLower(strings.Join(strings.Fields(name), "_"))
	base = utils.SecureFilename(base)
	if base == "" {
		base = "user_" + randomHex(6)
	}
	if len(base) > 64 {
		base = base[:64]
	}
	candidate := base
	for i := 1; i <= 20; i++ {
		var count int64
		if err := db.Model(&User{}).Where("username = ?", candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = base + "_" + randomHex(4)
	}
	return "", apperr.NewConflict("Could not allocate a unique username.")
}

func randomHex(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate")
}
