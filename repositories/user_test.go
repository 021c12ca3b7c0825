package repositories

import (
	"chat-relay/errors"
	"sync"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_Create_And_Get(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	err := repository.CreateUser("alice", "$argon2id$hash")
	req.NoError(err)

	user, err := repository.GetUser("alice")
	req.NoError(err)
	req.Equal("alice", user.Username)
	req.Equal("$argon2id$hash", user.PasswordHash)
	req.False(user.CreatedAt.IsZero())
}

func TestUserRepository_Duplicate(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	req.NoError(repository.CreateUser("alice", "first"))

	// When the same username registers again
	err := repository.CreateUser("alice", "second")

	// Then it is refused and the first hash is kept
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
	user, err := repository.GetUser("alice")
	req.NoError(err)
	req.Equal("first", user.PasswordHash)
}

func TestUserRepository_Concurrent_Duplicate(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	// Given many registrations of the same username at once
	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = repository.CreateUser("alice", "hash")
		}()
	}
	wg.Wait()

	// Then exactly one wins and the others see a duplicate
	created := lo.CountBy(errs, func(err error) bool { return err == nil })
	req.Equal(1, created)
	for _, err := range lo.Compact(errs) {
		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	}
}

func TestUserRepository_Unknown_User(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.GetUser("ghost")
	req.ErrorIs(err, errors.ErrUserNotFound)
}

func TestUserRepository_List(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	for _, name := range []string{"carol", "alice", "bob"} {
		req.NoError(repository.CreateUser(name, "hash"))
	}

	users, err := repository.ListUsers()
	req.NoError(err)
	req.Equal([]string{"alice", "bob", "carol"}, lo.Map(users, func(u User, _ int) string { return u.Username }))
}
