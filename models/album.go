package models

import (
	"errors"
	"time"

	"photoserver/apperr"

	"gorm.io/gorm"
)

type Album struct {
	ID             uint64 `gorm:"primaryKey"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Slug           string  `gorm:"type:varchar(100);not null;index:uniq_photographer_slug,unique,priority:2"`
	Name           string  `gorm:"type:varchar(200);not null"`
	Description    *string `gorm:"type:text"`
	PhotographerID uint64  `gorm:"not null;index:uniq_photographer_slug,unique,priority:1"`
	Photographer   User    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	CoverPhotoPath *string `gorm:"type:varchar(500)"`
	PhotoCount     int     `gorm:"not null;default:0"` // cached, storage listing is authoritative
	IsPublic       bool    `gorm:"not null;default:false"`
}

func AlbumInsert(db *gorm.DB, a *Album) error {
	if err := db.Create(a).Error; err != nil {
		if isDuplicate(err) {
			return apperr.NewConflict("Album ID already exists for this photographer.")
		}
		return err
	}
	return nil
}

func AlbumByOwner(db *gorm.DB, photographerID uint64, slug string) (a Album, err error) {
	err = db.First(&a, "photographer_id = ? AND slug = ?", photographerID, slug).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return a, apperr.NewNotFound("Album not found.")
	}
	return a, err
}

// AlbumByPhotographer looks an album up by the owner's username
func AlbumByPhotographer(db *gorm.DB, photographer, slug string) (a Album, err error) {
	err = db.Joins("join users on users.id = albums.photographer_id").
		Where("users.username = ? AND albums.slug = ?", photographer, slug).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return a, apperr.NewNotFound("Album not found.")
	}
	return a, err
}

func AlbumsForPhotographer(db *gorm.DB, photographerID uint64) (albums []Album, err error) {
	err = db.Where("photographer_id = ?", photographerID).Order("created_at DESC").Find(&albums).Error
	return
}

// AlbumDelete removes the album row together with its access grants
func AlbumDelete(db *gorm.DB, a *Album) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("album_id = ?", a.ID).Delete(&AlbumAccess{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Album{}, a.ID).Error
	})
}

// RecordUpload bumps the cached photo count and sets the cover when missing
func (a *Album) RecordUpload(db *gorm.DB, key string) error {
	updates := map[string]any{"photo_count": gorm.Expr("photo_count + 1")}
	if a.CoverPhotoPath == nil {
		updates["cover_photo_path"] = key
	}
	if err := db.Model(a).Updates(updates).Error; err != nil {
		return err
	}
	a.PhotoCount++
	if a.CoverPhotoPath == nil {
		a.CoverPhotoPath = &key
	}
	return nil
}

// SyncPhotos refreshes the cached count and cover from a storage listing
func (a *Album) SyncPhotos(db *gorm.DB, photoKeys []string) error {
	updates := map[string]any{"photo_count": len(photoKeys), "cover_photo_path": nil}
	if len(photoKeys) > 0 {
		updates["cover_photo_path"] = photoKeys[0]
	}
	if err := db.Model(a).Updates(updates).Error; err != nil {
		return err
	}
	a.PhotoCount = len(photoKeys)
	a.CoverPhotoPath = nil
	if len(photoKeys) > 0 {
		a.CoverPhotoPath = &photoKeys[0]
	}
	return nil
}
