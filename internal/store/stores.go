package store

import (
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a client-scoped record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNameTaken is returned when renaming a repository onto another descriptor's name.
	ErrNameTaken = errors.New("repository name already in use")
)

// Store is the persistence gateway. Every method is scoped by client id;
// no method reads or writes another client's records.
type Store interface {
	ConnectionStore
	MessageStore
	RepositoryStore
	MirrorStore

	// Close releases the backend.
	Close() error
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	PostgresDSN string
}

// GenNewID returns a time-ordered UUID v7 string.
func GenNewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
