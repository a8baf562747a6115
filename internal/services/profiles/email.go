package profiles

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/j-veylop/gemini-quota-switch/internal/logger"
)

// EmailCache resolves profile emails from google_accounts.json and keeps
// successful lookups for the life of the process.
type EmailCache struct {
	cache sync.Map
}

// NewEmailCache creates an empty cache.
func NewEmailCache() *EmailCache {
	return &EmailCache{}
}

// Email returns the active account email of a profile, or "".
func (c *EmailCache) Email(profileID, profileDir string) string {
	if v, ok := c.cache.Load(profileID); ok {
		return v.(string)
	}

	email := readEmail(profileDir)
	if email != "" {
		c.cache.Store(profileID, email)
	}
	return email
}

func readEmail(profileDir string) string {
	path := filepath.Join(profileDir, AccountsFile)
	data, err := os.ReadFile(path) // #nosec G304 -- path is built from the collection root
	if err != nil {
		return ""
	}

	var accounts struct {
		Active string `json:"active"`
	}
	if err := json.Unmarshal(data, &accounts); err != nil {
		logger.Debug("Failed to parse accounts file", "path", path, "error", err)
		return ""
	}
	return strings.ReplaceAll(accounts.Active, " ", "")
}
