// Package config contains everything related to configuration
package config

import (
	"os"
	"path/filepath"
	"regexp"
)

// GeminiCLIConstants are the OAuth client credentials bundled with an
// installed Gemini CLI.
type GeminiCLIConstants struct {
	ClientID     string
	ClientSecret string
}

const oauth2Module = "node_modules/@google/gemini-cli/node_modules/@google/gemini-cli-core/dist/src/code_assist/oauth2.js"

func getConstantsFilePaths() []string {
	var prefixes []string
	if prefix := os.Getenv("NPM_CONFIG_PREFIX"); prefix != "" {
		prefixes = append(prefixes, filepath.Join(prefix, "lib"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		prefixes = append(prefixes, filepath.Join(home, ".npm-global", "lib"))
	}
	prefixes = append(prefixes, "/usr/local/lib", "/usr/lib", "/opt/homebrew/lib")

	paths := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		paths = append(paths, filepath.Join(p, filepath.FromSlash(oauth2Module)))
	}
	return paths
}

// LoadGeminiCLIConstants looks for the OAuth client of a globally installed
// Gemini CLI. Returns nil when none is found.
func LoadGeminiCLIConstants() *GeminiCLIConstants {
	for _, path := range getConstantsFilePaths() {
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if constants := parseConstants(string(content)); constants != nil {
			return constants
		}
	}
	return nil
}

var (
	clientIDRe     = regexp.MustCompile(`OAUTH_CLIENT_ID\s*=\s*['"]([^'"]+)['"]`)
	clientSecretRe = regexp.MustCompile(`OAUTH_CLIENT_SECRET\s*=\s*['"]([^'"]+)['"]`)
)

func parseConstants(content string) *GeminiCLIConstants {
	constants := &GeminiCLIConstants{}

	// Match: const OAUTH_CLIENT_ID = '...';
	if match := clientIDRe.FindStringSubmatch(content); len(match) > 1 {
		constants.ClientID = match[1]
	}

	if match := clientSecretRe.FindStringSubmatch(content); len(match) > 1 {
		constants.ClientSecret = match[1]
	}

	if constants.ClientID == "" || constants.ClientSecret == "" {
		return nil
	}

	return constants
}
