// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Supported key files: groq-api-key, openai-api-key, anthropic-api-key, openalex-email.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// Key file names.
const (
	GroqAPIKey      = "groq-api-key"
	OpenAIAPIKey    = "openai-api-key"
	AnthropicAPIKey = "anthropic-api-key"
	OpenAlexEmail   = "openalex-email"
)

// Secrets maps key file names to their trimmed contents.
type Secrets map[string]string

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string, logger *zap.Logger) (Secrets, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(Secrets)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("could not read secret", zap.String("name", name), zap.Error(err))
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Names returns the loaded key names in sorted order.
func (s Secrets) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Apply fills credentials that cfg leaves empty. The model key is chosen by
// provider; the langchain provider talks to Groq unless its base URL says
// otherwise.
func (s Secrets) Apply(cfg *types.Config) {
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = s[llmKeyFile(cfg.LLM)]
	}
	if cfg.Search.Email == "" {
		cfg.Search.Email = s[OpenAlexEmail]
	}
}

func llmKeyFile(cfg types.LLMConfig) string {
	switch strings.ToLower(cfg.Provider) {
	case types.ProviderAnthropic:
		return AnthropicAPIKey
	case types.ProviderOpenAI:
		return OpenAIAPIKey
	}
	if cfg.BaseURL != "" && !strings.Contains(cfg.BaseURL, "groq.com") {
		return OpenAIAPIKey
	}
	return GroqAPIKey
}
