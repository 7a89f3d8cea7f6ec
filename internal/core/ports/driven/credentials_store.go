package driven

import "github.com/custodia-labs/slate/internal/core/domain"

// CredentialsStore persists the sync service tokens. Implementations
// handle the on-disk format and reload on external changes, so a device
// registered by another tool is picked up without a restart.
type CredentialsStore interface {
	// Load reads the stored credentials. Returns domain.ErrAuthRequired
	// when no credentials exist.
	Load() (*domain.Credentials, error)

	// Save stores credentials. Creates if new, updates if exists.
	Save(creds domain.Credentials) error

	// Watch invokes onChange whenever the underlying store changes.
	// The returned stop function cancels the watch.
	Watch(onChange func(domain.Credentials)) (func(), error)

	// Path returns the credentials file path.
	Path() string
}
