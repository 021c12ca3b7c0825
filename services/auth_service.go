package services

import (
	"chat-relay/auth"
	"chat-relay/errors"
	"chat-relay/repositories"
	stderrors "errors"
	"fmt"

	"github.com/samber/lo"
)

type IAuthService interface {
	Register(username, password string) error
	Login(username, password string) (Token, error)
	ListIdentities() ([]string, error)
}

type AuthService struct {
	userRepository repositories.IUserRepository
	tokens         *auth.TokenIssuer
}

type Token string

func NewAuthService(repo repositories.IUserRepository, tokens *auth.TokenIssuer) IAuthService {
	return &AuthService{userRepository: repo, tokens: tokens}
}

func (s *AuthService) Register(username, password string) error {
	// Validated before any expensive cryptographic operation
	if err := auth.ValidateRegister(auth.RegisterRequest{Username: username, Password: password}); err != nil {
		return err
	}

	// The repository never sees plain passwords
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing failed: %w", err)
	}

	// Propagates ErrUserAlreadyExists when the username is taken
	return s.userRepository.CreateUser(username, hashedPassword)
}

func (s *AuthService) Login(username, password string) (Token, error) {
	user, err := s.userRepository.GetUser(username)
	switch {
	case stderrors.Is(err, errors.ErrUserNotFound):
		// Generic error to prevent user enumeration
		return "", errors.ErrInvalidCredentials
	case err != nil:
		return "", err
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.Username)
	if err != nil {
		return "", err
	}
	return Token(token), nil
}

func (s *AuthService) ListIdentities() ([]string, error) {
	users, err := s.userRepository.ListUsers()
	if err != nil {
		return nil, err
	}
	return lo.Map(users, func(u repositories.User, _ int) string { return u.Username }), nil
}
