package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var ErrInvalidKey = errors.New("invalid object key")

// DiskStorage keeps objects as files under BasePath, the key being the relative path.
// It backs local development, tests and the reference photo cache.
type DiskStorage struct {
	// BasePath is a directory (usually mount point of a disk) that is writable by the current process
	BasePath  string
	BaseURL   string
	dirs      map[string]bool
	dirsMutex sync.Mutex
}

func NewDiskStorage(basePath, baseURL string) *DiskStorage {
	return &DiskStorage{
		BasePath: basePath,
		BaseURL:  strings.TrimRight(baseURL, "/"),
		dirs:     make(map[string]bool, 10),
	}
}

func (s *DiskStorage) createDir(dir string) error {
	s.dirsMutex.Lock()
	defer s.dirsMutex.Unlock()

	if ok := s.dirs[dir]; ok {
		return nil
	}
	if err := os.MkdirAll(dir, 0777); err != nil {
		return err
	}
	s.dirs[dir] = true
	return nil
}

func (s *DiskStorage) getFullPath(key string) (string, error) {
	clean := path.Clean("/" + key)
	if key == "" || clean == "/" || strings.Contains(key, "..") {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.BasePath, filepath.FromSlash(clean)), nil
}

// LocalPath returns the file backing key
func (s *DiskStorage) LocalPath(key string) (string, error) {
	return s.getFullPath(key)
}

func (s *DiskStorage) Save(key string, reader io.Reader) (int64, error) {
	fileName, err := s.getFullPath(key)
	if err != nil {
		return 0, err
	}
	if err := s.createDir(filepath.Dir(fileName)); err != nil {
		return 0, err
	}
	file, err := os.Create(fileName)
	if err != nil {
		return 0, err
	}
	result, err := io.Copy(file, reader)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return result, err
}

func (s *DiskStorage) Load(key string, writer io.Writer) (int64, error) {
	fileName, err := s.getFullPath(key)
	if err != nil {
		return 0, err
	}
	file, err := os.Open(fileName)
	if err != nil {
		return 0, err
	}
	result, err := io.Copy(writer, file)
	file.Close()
	return result, err
}

func (s *DiskStorage) Exists(key string) bool {
	fileName, err := s.getFullPath(key)
	if err != nil {
		return false
	}
	info, err := os.Stat(fileName)
	return err == nil && info.Mode().IsRegular()
}

func (s *DiskStorage) Serve(key string, request *http.Request, writer http.ResponseWriter) {
	fileName, err := s.getFullPath(key)
	if err != nil {
		http.NotFound(writer, request)
		return
	}
	http.ServeFile(writer, request, fileName)
}

func (s *DiskStorage) URLFor(key string) string {
	return s.BaseURL + "/" + key
}

func (s *DiskStorage) Put(_ context.Context, localFile, key string) (string, error) {
	file, err := os.Open(localFile)
	if err != nil {
		return "", err
	}
	defer file.Close()
	if _, err = s.Save(key, file); err != nil {
		return "", err
	}
	return s.URLFor(key), nil
}

// List walks the directory holding prefix. Delimiter handling follows S3:
// anything past the first delimiter after the prefix is rolled up into a common prefix.
func (s *DiskStorage) List(_ context.Context, prefix, delimiter string, limit int) ([]string, error) {
	if limit == 0 {
		limit = DefaultListLimit
	}
	root := s.BasePath
	if i := strings.LastIndex(prefix, "/"); i > 0 {
		root = filepath.Join(s.BasePath, filepath.FromSlash(prefix[:i]))
	}
	keys := []string{}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.BasePath, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)

	result := []string{}
	seen := map[string]bool{}
	for _, key := range keys {
		if delimiter != "" {
			rest := key[len(prefix):]
			if i := strings.Index(rest, delimiter); i >= 0 {
				key = prefix + rest[:i+len(delimiter)]
				if seen[key] {
					continue
				}
				seen[key] = true
			}
		}
		result = append(result, key)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// Delete succeeds when the file is already gone, the same as S3
func (s *DiskStorage) Delete(_ context.Context, key string) error {
	fileName, err := s.getFullPath(key)
	if err != nil {
		return err
	}
	err = os.Remove(fileName)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
