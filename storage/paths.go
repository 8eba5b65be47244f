package storage

import "strings"

const (
	AlbumsRoot   = "event_albums/"
	ProfilesRoot = "user_profiles/"
)

func PhotographerPrefix(photographer string) string {
	return AlbumsRoot + photographer + "/"
}

func AlbumPrefix(photographer, slug string) string {
	return PhotographerPrefix(photographer) + slug + "/"
}

func PlaceholderKey(photographer, slug string) string {
	return AlbumPrefix(photographer, slug) + placeholderName
}

func PhotoKey(photographer, slug, name string) string {
	return AlbumPrefix(photographer, slug) + name
}

func ProfileKey(username, name string) string {
	return ProfilesRoot + username + "/" + name
}

// BaseName is the last path component of a key (or folder prefix)
func BaseName(key string) string {
	key = strings.TrimRight(key, "/")
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[i+1:]
	}
	return key
}
