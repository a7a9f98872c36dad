package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/peerchat/internal/common"
	"github.com/dmitrijs2005/peerchat/internal/filex"
)

// CheckUsername rejects usernames that cannot name a file inside the cache
// directory.
func CheckUsername(username string) error {
	if username == "" || username == "." || strings.Contains(username, "..") ||
		strings.ContainsAny(username, "/\\\x00") || strings.ContainsRune(username, filepath.Separator) {
		return fmt.Errorf("%w: username %q cannot be used as a cache file name", common.ErrRequest, username)
	}
	return nil
}

// FileName is the cache file name for username.
func FileName(username string) (string, error) {
	if err := CheckUsername(username); err != nil {
		return "", err
	}
	return username + "_cached_messages.json", nil
}

// JSONFileStore keeps the cache in one JSON object on disk.
type JSONFileStore struct {
	path string
}

// NewJSONFileStore stores username's cache under dir, creating dir if needed.
func NewJSONFileStore(dir, username string) (*JSONFileStore, error) {
	name, err := FileName(username)
	if err != nil {
		return nil, err
	}
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, err
	}
	return &JSONFileStore{path: filepath.Join(abs, name)}, nil
}

func (s *JSONFileStore) Path() string { return s.path }

func (s *JSONFileStore) Load(ctx context.Context) (map[string][]string, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string][]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache %s: %w", s.path, err)
	}
	if len(b) == 0 {
		return map[string][]string{}, nil
	}

	out := map[string][]string{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("parse cache %s: %w", s.path, err)
	}
	return out, nil
}

func (s *JSONFileStore) Save(ctx context.Context, pending map[string][]string) error {
	b, err := json.MarshalIndent(pending, "", "  ")
	if err != nil {
		return err
	}
	return filex.WriteFileAtomic(s.path, b, 0o600)
}
