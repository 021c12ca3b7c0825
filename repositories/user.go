//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"chat-relay/errors"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const userPrefix = "user:"

type IUserRepository interface {
	CreateUser(username, hashedPassword string) error
	GetUser(username string) (User, error)
	ListUsers() ([]User, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

// User is the repository representation of an account.
type User struct {
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// CreateUser persists the account, refusing to overwrite an existing username.
// The existence check and the write share one transaction.
func (u UserRepository) CreateUser(username, hashedPassword string) error {
	data := marshalUser(User{
		Username:     username,
		PasswordHash: hashedPassword,
		CreatedAt:    time.Now().UTC(),
	})

	err := u.db.Update(func(txn *badger.Txn) error {
		key := []byte(userPrefix + username)
		_, err := txn.Get(key)
		switch {
		case err == nil:
			return errors.ErrUserAlreadyExists
		case !stderrors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return txn.Set(key, data)
	})

	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, errors.ErrUserAlreadyExists):
		return err
	case stderrors.Is(err, badger.ErrConflict):
		// Another transaction created the same key first.
		return errors.ErrUserAlreadyExists
	default:
		return fmt.Errorf("%w: %w", errors.ErrStorage, err)
	}
}

func (u UserRepository) GetUser(username string) (User, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(userPrefix + username))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			user, err = unmarshalUser(val)
			return err
		})
	})

	switch {
	case err == nil:
		return user, nil
	case stderrors.Is(err, badger.ErrKeyNotFound):
		return User{}, errors.ErrUserNotFound
	default:
		return User{}, fmt.Errorf("%w: %w", errors.ErrStorage, err)
	}
}

// ListUsers returns every account ordered by username.
func (u UserRepository) ListUsers() ([]User, error) {
	var users []User
	err := u.db.View(func(txn *badger.Txn) error {
		prefix := []byte(userPrefix)
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				user, err := unmarshalUser(val)
				if err != nil {
					return err
				}
				users = append(users, user)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrStorage, err)
	}
	return users, nil
}
