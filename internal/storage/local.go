package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// assetNamespace seeds the name-based uuid used for asset file names.
var assetNamespace = uuid.MustParse("6f1c1c52-2d0e-4f4b-9a57-5a1d8e6c2b10")

// LocalStore keeps one JSON record per asset in a directory.
type LocalStore struct {
	UploadDir string

	mu sync.Mutex
}

func NewLocalStore(uploadDir string) (*LocalStore, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, wrap("local", "open", err)
	}
	return &LocalStore{UploadDir: uploadDir}, nil
}

// path derives the file name from the asset id. Using a name-based uuid
// keeps arbitrary ids (slashes, dots) out of the filesystem path.
func (s *LocalStore) path(id string) string {
	return filepath.Join(s.UploadDir, uuid.NewSHA1(assetNamespace, []byte(id)).String()+".json")
}

func (s *LocalStore) Put(ctx context.Context, id, payload string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	raw, err := json.Marshal(newAsset(id, payload))
	if err != nil {
		return "", wrap("local", "put", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path(id) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return "", wrap("local", "put", err)
	}
	if err := os.Rename(tmp, s.path(id)); err != nil {
		return "", wrap("local", "put", err)
	}
	return id, nil
}

func (s *LocalStore) Get(ctx context.Context, id string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, err := readAsset(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrap("local", "get", err)
	}
	return asset.Data, true, nil
}

func (s *LocalStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return wrap("local", "delete", err)
	}
	return nil
}

func (s *LocalStore) GetAll(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.records()
	if err != nil {
		return nil, wrap("local", "getAll", err)
	}
	out := make(map[string]string, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		asset, err := readAsset(f)
		if err != nil {
			return nil, wrap("local", "getAll", err)
		}
		out[asset.ID] = asset.Data
	}
	return out, nil
}

func (s *LocalStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.records()
	if err != nil {
		return wrap("local", "clear", err)
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return wrap("local", "clear", err)
		}
	}
	return nil
}

func (s *LocalStore) Close() error {
	return nil
}

func (s *LocalStore) records() ([]string, error) {
	entries, err := os.ReadDir(s.UploadDir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(s.UploadDir, e.Name()))
	}
	return files, nil
}

func readAsset(path string) (Asset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Asset{}, err
	}
	var asset Asset
	if err := json.Unmarshal(raw, &asset); err != nil {
		return Asset{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return asset, nil
}
