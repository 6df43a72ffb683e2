package repositories

import (
	"chat-sync/domain"
	"chat-sync/errors"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const sessionUserKey = "session:user"

type SessionRepository struct {
	db *badger.DB
}

func NewSessionRepository(db *badger.DB) SessionRepository {
	return SessionRepository{db: db}
}

// OpenSessionDB opens the session store. An empty path keeps it in
// memory, so the identity lives as long as the process.
func OpenSessionDB(path string) (*badger.DB, error) {
	options := badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR)
	if path == "" {
		options = badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR)
	}
	db, err := badger.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return db, nil
}

// SaveUser replaces the stored identity.
func (s SessionRepository) SaveUser(user domain.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(sessionUserKey), data)
	})
}

// LoadUser returns ErrNoSession when nothing was saved.
func (s SessionRepository) LoadUser() (domain.User, error) {
	var user domain.User
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(sessionUserKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &user)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, errors.ErrNoSession
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("load session: %w", err)
	}
	return user, nil
}

func (s SessionRepository) DeleteUser() error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(sessionUserKey))
	})
}
