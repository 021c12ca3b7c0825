package services

import (
	"chat-relay/auth"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/repositories"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuthService_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	svc := NewAuthService(mockRepo, auth.NewTokenIssuer("secret", 24*time.Hour))

	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)

		// Expect CreateUser to be called with a hashed password, not the plain one
		mockRepo.EXPECT().
			CreateUser("alice", gomock.Not("password123")).
			Return(nil).
			Times(1)

		req.NoError(svc.Register("alice", "password123"))
	})

	t.Run("should fail when input is invalid", func(t *testing.T) {
		req := require.New(t)

		// Repository should NEVER be called
		mockRepo.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Times(0)

		err := svc.Register("alice", "short")

		req.ErrorIs(err, errors.ErrValidation)
	})

	t.Run("should fail when user already exists in repository", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			CreateUser("bob", gomock.Any()).
			Return(errors.ErrUserAlreadyExists).
			Times(1)

		err := svc.Register("bob", "password123")

		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	tokens := auth.NewTokenIssuer("secret", 24*time.Hour)
	svc := NewAuthService(mockRepo, tokens)

	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)

	t.Run("should login successfully with correct credentials", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().
			GetUser("alice").
			Return(repositories.User{Username: "alice", PasswordHash: hash}, nil).
			Times(1)

		token, err := svc.Login("alice", "password123")

		req.NoError(err)
		claims, err := tokens.Validate(string(token))
		req.NoError(err)
		req.Equal("alice", claims.Username)
	})

	t.Run("should fail with wrong password", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().
			GetUser("alice").
			Return(repositories.User{Username: "alice", PasswordHash: hash}, nil).
			Times(1)

		_, err := svc.Login("alice", "wrong-password")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should hide unknown users behind invalid credentials", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().GetUser("ghost").Return(repositories.User{}, errors.ErrUserNotFound).Times(1)

		_, err := svc.Login("ghost", "password123")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should surface storage failures", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().
			GetUser("alice").
			Return(repositories.User{}, fmt.Errorf("%w: closed", errors.ErrStorage)).
			Times(1)

		_, err := svc.Login("alice", "password123")

		req.ErrorIs(err, errors.ErrStorage)
	})
}

func TestAuthService_ListIdentities(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockIUserRepository(ctrl)
	svc := NewAuthService(mockRepo, auth.NewTokenIssuer("secret", time.Hour))

	mockRepo.EXPECT().
		ListUsers().
		Return([]repositories.User{{Username: "alice"}, {Username: "bob"}}, nil).
		Times(1)

	identities, err := svc.ListIdentities()

	req.NoError(err)
	req.Equal([]string{"alice", "bob"}, identities)
}
