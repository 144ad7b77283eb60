package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/sharedlogin/internal/domain/model"
)

// Sentinel errors returned by CredentialStore implementations.
var (
	// ErrEncryptionKeyNotSet is returned when SHAREDLOGIN_SECRET_KEY has not
	// been configured and a credential secret must be read or written.
	ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set SHAREDLOGIN_SECRET_KEY")

	// ErrCredentialNotFound indicates the requested credential does not exist.
	ErrCredentialNotFound = errors.New("credential not found")
)

// CredentialStore defines the driven port for shared login persistence.
// The adapter encrypts secrets at rest; this interface works on plaintext.
type CredentialStore interface {
	// Upsert inserts the credential, or replaces it when ID is set and
	// already stored. An empty ID gets a new one. Returns the stored ID.
	Upsert(ctx context.Context, cred model.Credential) (string, error)

	// Get returns the credential with the given ID, or ErrCredentialNotFound.
	Get(ctx context.Context, id string) (model.Credential, error)

	// List returns every stored credential, hidden ones included.
	List(ctx context.Context) ([]model.Credential, error)

	// Delete hard-deletes the credential. Returns ErrCredentialNotFound if it
	// does not exist.
	Delete(ctx context.Context, id string) error
}
