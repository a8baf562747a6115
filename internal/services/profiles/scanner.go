// Package profiles discovers credential profiles on disk, tracks which one is
// current, and switches the active profile.
package profiles

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"github.com/j-veylop/gemini-quota-switch/internal/logger"
	"github.com/j-veylop/gemini-quota-switch/internal/models"
)

// On-disk names.
const (
	MarkerFile   = "current-project"
	AccountsFile = "google_accounts.json"
	ReservedDir  = "tmp"
)

// Scanner enumerates profiles under the collection root.
type Scanner struct {
	collectionDir string
	activeDir     string
}

// NewScanner creates a Scanner.
func NewScanner(collectionDir, activeDir string) *Scanner {
	return &Scanner{collectionDir: collectionDir, activeDir: activeDir}
}

// CurrentProfile reads the current marker. A missing marker is not an error.
func (s *Scanner) CurrentProfile() (string, bool) {
	return readMarker(s.activeDir)
}

// Scan lists the profiles and the current profile id ("" when unknown).
// A missing collection root yields no profiles.
func (s *Scanner) Scan() ([]models.Account, string, error) {
	currentID, _ := s.CurrentProfile()

	entries, err := os.ReadDir(s.collectionDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, currentID, nil
		}
		return nil, currentID, fmt.Errorf("failed to read collection %s: %w", s.collectionDir, err)
	}

	dirs := lo.Filter(entries, func(e os.DirEntry, _ int) bool {
		return e.IsDir()
	})
	accounts := lo.Map(dirs, func(e os.DirEntry, _ int) models.Account {
		return models.Account{
			ProfileID: e.Name(),
			Dir:       filepath.Join(s.collectionDir, e.Name()),
			IsCurrent: e.Name() == currentID,
		}
	})

	return accounts, currentID, nil
}

func readMarker(activeDir string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(activeDir, MarkerFile)) // #nosec G304 -- configured directory
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Failed to read current profile marker", "dir", activeDir, "error", err)
		}
		return "", false
	}
	id := strings.TrimSpace(string(data))
	return id, id != ""
}
