// Package artifact persists synthesized configuration documents as flat
// JSON files served back to client agents by URL.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"detour/internal/singbox"
	"detour/pkg/platform/sentinel"
)

// Location identifies a written document.
type Location struct {
	FileName  string
	Path      string
	PublicURL string
}

// Info describes a stored document for listings.
type Info struct {
	FileName   string    `json:"file_name"`
	ClientName string    `json:"client_name"`
	Platform   string    `json:"platform"`
	ModifiedAt time.Time `json:"modified_at"`
	PublicURL  string    `json:"public_url"`
}

// Store writes documents under a single directory as
// <client>-<platform>.json.
type Store struct {
	dir           string
	publicBaseURL string
}

// NewStore ensures the artifact directory exists.
func NewStore(dir, publicBaseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &Store{dir: dir, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

// Write renders the document and persists it, replacing any previous file
// for the same client and platform.
func (s *Store) Write(clientName string, platform singbox.Platform, doc *singbox.Document) (Location, error) {
	fileName := fmt.Sprintf("%s-%s.json", clientName, platform)
	if err := validFileName(fileName); err != nil {
		return Location{}, err
	}
	payload, err := doc.Marshal()
	if err != nil {
		return Location{}, fmt.Errorf("marshal document: %w", err)
	}
	path := filepath.Join(s.dir, fileName)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return Location{}, fmt.Errorf("write document: %w", err)
	}
	return Location{
		FileName:  fileName,
		Path:      path,
		PublicURL: s.publicBaseURL + "/" + fileName,
	}, nil
}

// Read returns the raw stored document.
func (s *Store) Read(fileName string) (json.RawMessage, error) {
	if err := validFileName(fileName); err != nil {
		return nil, err
	}
	payload, err := os.ReadFile(filepath.Join(s.dir, fileName))
	if os.IsNotExist(err) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// List returns every stored document, newest first.
func (s *Store) List() ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	infos := make([]Info, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		stat, err := entry.Info()
		if err != nil {
			continue
		}
		clientName, platform := splitFileName(name)
		infos = append(infos, Info{
			FileName:   name,
			ClientName: clientName,
			Platform:   platform,
			ModifiedAt: stat.ModTime(),
			PublicURL:  s.publicBaseURL + "/" + name,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ModifiedAt.After(infos[j].ModifiedAt)
	})
	return infos, nil
}

// Delete removes a stored document. Missing files are not an error.
func (s *Store) Delete(fileName string) error {
	if err := validFileName(fileName); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.dir, fileName))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func validFileName(fileName string) error {
	if fileName == "" || fileName != filepath.Base(fileName) || !strings.HasSuffix(fileName, ".json") {
		return fmt.Errorf("invalid document file name %q", fileName)
	}
	return nil
}

// splitFileName recovers client name and platform from
// <client>-<platform>.json. The platform is the last dash-separated token,
// so client names may themselves contain dashes.
func splitFileName(fileName string) (clientName, platform string) {
	base := strings.TrimSuffix(fileName, ".json")
	idx := strings.LastIndex(base, "-")
	if idx < 0 {
		return base, ""
	}
	return base[:idx], base[idx+1:]
}
