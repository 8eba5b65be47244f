package utils

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/nfnt/resize"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"
)

var (
	AllowedImageExtensions = map[string]bool{"png": true, "jpg": true, "jpeg": true, "gif": true}

	unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)
)

func HashPassword(plainTextPassword string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plainTextPassword), bcrypt.DefaultCost)
	return string(hash), err
}

// CheckPassword compares in constant time
func CheckPassword(hash, plainTextPassword string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plainTextPassword)) == nil
}

// AllowedImage checks the extension of an uploaded file name
func AllowedImage(filename string) bool {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return false
	}
	return AllowedImageExtensions[strings.ToLower(filename[i+1:])]
}

// SecureFilename reduces a user supplied name to a safe single path component:
// ASCII only, separators and whitespace become underscores, no leading dots.
func SecureFilename(name string) string {
	name = norm.NFKD.String(name)
	name = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, name)
	name = strings.NewReplacer("/", " ", "\\", " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

// Slugify derives a URL-safe album id from a display name
func Slugify(displayName string) string {
	slug := SecureFilename(strings.ReplaceAll(strings.ToLower(displayName), " ", "-"))
	return strings.Trim(slug, "-")
}

// TitleFromSlug is used when an album has no stored display name
func TitleFromSlug(slug string) string {
	words := strings.Fields(strings.ReplaceAll(slug, "-", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

type ImageNormalized struct {
	Data    []byte
	Ext     string // new extension when the image was re-encoded
	Resized bool
	OldX    int
	OldY    int
}

// NormalizeImage validates that data decodes as an image and scales it down
// to fit maxSize x maxSize, re-encoding as JPEG when it had to be resized.
func NormalizeImage(maxSize uint, reader io.Reader) (result ImageNormalized, err error) {
	var original bytes.Buffer
	img, _, err := image.Decode(io.TeeReader(reader, &original))
	if err != nil {
		return result, err
	}
	size := img.Bounds().Size()
	result.OldX, result.OldY = size.X, size.Y
	if maxSize == 0 || (size.X <= int(maxSize) && size.Y <= int(maxSize)) {
		result.Data = original.Bytes()
		return result, nil
	}
	var newBuf bytes.Buffer
	newImage := resize.Thumbnail(maxSize, maxSize, img, resize.Lanczos3)
	if err = jpeg.Encode(&newBuf, newImage, &jpeg.Options{Quality: 90}); err != nil {
		return
	}
	result.Data = newBuf.Bytes()
	result.Ext = ".jpg"
	result.Resized = true
	return result, nil
}

// ReplaceExt swaps the extension of name, used after NormalizeImage re-encodes
func ReplaceExt(name, ext string) string {
	if ext == "" {
		return name
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}
