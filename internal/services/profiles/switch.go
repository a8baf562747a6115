package profiles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/j-veylop/gemini-quota-switch/internal/logger"
	"github.com/j-veylop/gemini-quota-switch/internal/models"
)

var (
	// ErrNoCurrentProfile is returned when neither the marker nor the last
	// snapshot names a current profile.
	ErrNoCurrentProfile = errors.New("no current profile could be determined")
	// ErrProfileNotFound is returned when the target profile directory is missing.
	ErrProfileNotFound = errors.New("profile not found")
)

// Switcher replaces the active directory with a copy of a collection profile.
//
// The sequence is clear active dir, write marker, copy profile. It is not
// atomic: a failure part way through leaves the active directory partially
// rewritten.
type Switcher struct {
	group         singleflight.Group
	collectionDir string
	activeDir     string
}

// NewSwitcher creates a Switcher.
func NewSwitcher(collectionDir, activeDir string) *Switcher {
	return &Switcher{collectionDir: collectionDir, activeDir: activeDir}
}

// SwitchTo makes profileID the active profile. Concurrent calls for the same
// profile share one execution.
func (s *Switcher) SwitchTo(ctx context.Context, profileID string) (models.SwitchResult, error) {
	if err := validateProfileID(profileID); err != nil {
		return models.SwitchResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.SwitchResult{}, err
	}

	_, err, shared := s.group.Do(profileID, func() (any, error) {
		return nil, s.switchTo(profileID)
	})
	if err != nil {
		return models.SwitchResult{}, err
	}
	if shared {
		logger.Debug("Switch shared with a concurrent request", "profile", profileID)
	}
	return models.SwitchResult{ProfileID: profileID, Switched: true}, nil
}

func (s *Switcher) switchTo(profileID string) error {
	src := filepath.Join(s.collectionDir, profileID)
	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, profileID)
		}
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrProfileNotFound, src)
	}

	if err := os.MkdirAll(s.activeDir, 0o750); err != nil {
		return fmt.Errorf("failed to create active dir: %w", err)
	}

	if err := clearDir(s.activeDir); err != nil {
		return err
	}

	marker := filepath.Join(s.activeDir, MarkerFile)
	if err := os.WriteFile(marker, []byte(profileID), 0o600); err != nil {
		return fmt.Errorf("failed to write marker: %w", err)
	}

	if err := copyTree(src, s.activeDir); err != nil {
		return fmt.Errorf("failed to copy profile %s: %w", profileID, err)
	}

	logger.Info("Switched active profile", "profile", profileID)
	return nil
}

// Current reports the current profile: the marker first, then the profile
// flagged current in the last snapshot.
func (s *Switcher) Current(snapshot *models.AggregateSnapshot) (string, error) {
	if id, ok := readMarker(s.activeDir); ok {
		return id, nil
	}
	if id, ok := snapshot.CurrentFromMetrics(); ok {
		return id, nil
	}
	return "", ErrNoCurrentProfile
}

func validateProfileID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("invalid profile id %q", id)
	}
	return nil
}

// clearDir removes every entry of dir except the reserved subtree.
func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read active dir: %w", err)
	}
	for _, e := range entries {
		if e.Name() == ReservedDir {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("failed to remove %s: %w", e.Name(), err)
		}
	}
	return nil
}

// copyTree copies src into dst, skipping any entry named like the reserved subtree.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if d.Name() == ReservedDir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		default:
			return copyFile(path, target, info.Mode().Perm())
		}
	})
}

func copyFile(src, dst string, perm fs.FileMode) (err error) {
	in, err := os.Open(src) // #nosec G304 -- path comes from walking the collection
	if err != nil {
		return err
	}
	defer func() {
		if cerr := in.Close(); cerr != nil {
			logger.Error("failed to close file", "path", src, "error", cerr)
		}
	}()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm) // #nosec G304
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}
