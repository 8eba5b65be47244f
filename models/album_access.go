package models

import (
	"time"

	"gorm.io/gorm"
)

// AlbumAccess grants an attendee the right to view an album
type AlbumAccess struct {
	UserID    uint64 `gorm:"primaryKey"`
	User      User   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	AlbumID   uint64 `gorm:"primaryKey"`
	Album     Album  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	GrantedAt time.Time
}

func (AlbumAccess) TableName() string {
	return "user_album_access"
}

type AccessibleAlbum struct {
	AlbumID      string
	Name         string
	Photographer string
}

// GrantAccess is idempotent: granted is false when the pair already existed
func GrantAccess(db *gorm.DB, userID, albumID uint64) (granted bool, err error) {
	var count int64
	if err = db.Model(&AlbumAccess{}).Where("user_id = ? AND album_id = ?", userID, albumID).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	access := AlbumAccess{UserID: userID, AlbumID: albumID, GrantedAt: time.Now()}
	if err = db.Create(&access).Error; err != nil {
		if isDuplicate(err) {
			// lost a race against a concurrent grant
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func AccessibleAlbums(db *gorm.DB, userID uint64) (result []AccessibleAlbum, err error) {
	rows, err := db.Table("user_album_access").
		Select("albums.slug, albums.name, users.username").
		Joins("join albums on albums.id = user_album_access.album_id").
		Joins("join users on users.id = albums.photographer_id").
		Where("user_album_access.user_id = ?", userID).
		Order("user_album_access.granted_at ASC").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result = []AccessibleAlbum{}
	for rows.Next() {
		a := AccessibleAlbum{}
		if err = rows.Scan(&a.AlbumID, &a.Name, &a.Photographer); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}
