package file

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/slate/internal/core/domain"
	"github.com/custodia-labs/slate/internal/core/ports/driven"
	"github.com/custodia-labs/slate/internal/logger"
)

// Ensure CredentialsStore implements the interface.
var _ driven.CredentialsStore = (*CredentialsStore)(nil)

// CredentialsStore persists sync service tokens as a JSON file.
// Two on-disk forms are accepted: the JSON object other reMarkable tools
// write, and a bare JWT pasted directly into the file.
type CredentialsStore struct {
	filePath string
}

// NewCredentialsStore creates a credentials store under configDir.
// If configDir is empty, defaults to ~/.slate/credentials.json.
func NewCredentialsStore(configDir string) (*CredentialsStore, error) {
	dir, err := resolveConfigDir(configDir)
	if err != nil {
		return nil, err
	}
	return &CredentialsStore{filePath: filepath.Join(dir, "credentials.json")}, nil
}

// Load reads the stored credentials.
func (s *CredentialsStore) Load() (*domain.Credentials, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrAuthRequired
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	creds, err := ParseCredentials(data)
	if err != nil {
		return nil, err
	}
	if !creds.Registered() {
		return nil, domain.ErrAuthRequired
	}
	return creds, nil
}

// ParseCredentials decodes either on-disk credential form.
// JWTs always start with "eyJ" (base64 of `{"`), so a file holding a bare
// token is treated as the device token.
func ParseCredentials(data []byte) (*domain.Credentials, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "eyJ") {
		return &domain.Credentials{DeviceToken: trimmed}, nil
	}

	var creds domain.Credentials
	if err := json.Unmarshal([]byte(trimmed), &creds); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", domain.ErrAuthInvalid)
	}
	return &creds, nil
}

// Save stores credentials in the JSON form.
func (s *CredentialsStore) Save(creds domain.Credentials) error {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := os.WriteFile(s.filePath, data, 0600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// Watch invokes onChange whenever the credentials file is rewritten.
// Watching the directory rather than the file survives atomic
// rename-into-place writes.
func (s *CredentialsStore) Watch(onChange func(domain.Credentials)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.filePath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch credentials dir: %w", err)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != s.filePath {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				creds, err := s.Load()
				if err != nil {
					logger.Warn("credentials reload failed: %v", err)
					continue
				}
				logger.Info("credentials file changed, reloaded")
				onChange(*creds)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("credentials watch error: %v", err)
			case <-done:
				return
			}
		}
	}()

	stop := func() {
		close(done)
		watcher.Close()
	}
	return stop, nil
}

// Path returns the credentials file path.
func (s *CredentialsStore) Path() string {
	return s.filePath
}
