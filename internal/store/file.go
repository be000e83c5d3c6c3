package store

import (
	"encoding/json"
	"os"

	"example.com/jsonblog/internal/models"
	"github.com/pkg/errors"
)

// ErrNotArray is returned when the data file holds valid JSON that is not an array.
var ErrNotArray = errors.New("data file does not contain a JSON array")

// FileStore keeps the collection as one JSON array in a single file.
// Save overwrites the file in place: a crash mid-write can truncate it.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Path() string { return f.path }

// Load fails when the file is missing, unreadable or not a JSON array.
func (f *FileStore) Load() ([]models.Post, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, errors.Wrap(err, "read data file")
	}

	var posts []models.Post
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, errors.Wrap(err, "decode data file")
	}
	// "null" decodes without error but leaves the slice nil
	if posts == nil {
		return nil, ErrNotArray
	}
	return posts, nil
}

func (f *FileStore) Save(posts []models.Post) error {
	if posts == nil {
		posts = []models.Post{}
	}
	data, err := json.Marshal(posts)
	if err != nil {
		return errors.Wrap(err, "encode posts")
	}
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return errors.Wrap(err, "write data file")
	}
	return nil
}

func (f *FileStore) Close() {}

// EnsureDataFile creates path holding an empty collection when it does not
// exist. An existing file is never touched, even if it is invalid.
func EnsureDataFile(path string) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return errors.Wrap(err, "stat data file")
	}
	if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
		return errors.Wrap(err, "seed data file")
	}
	logg.Info("store", "Created empty data file "+path)
	return nil
}
