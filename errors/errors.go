package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrValidation         = fmt.Errorf("validation failed")
	ErrStorage            = fmt.Errorf("storage failure")
	ErrImpersonation      = fmt.Errorf("sender does not match the identity bound to the connection")
	ErrSessionClosed      = fmt.Errorf("session closed")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrInvalidCredentials = fmt.Errorf("invalid username or password")
	ErrInvalidPassword    = fmt.Errorf("invalid password")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrEmptyWords         = fmt.Errorf("no censored words loaded")
)

// MapToHTTPStatus translates a domain error into the status code of the REST surface.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, ErrValidation),
		stderrors.Is(err, ErrInvalidPassword),
		stderrors.Is(err, ErrUserAlreadyExists),
		stderrors.Is(err, ErrInvalidCredentials):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrImpersonation):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// MapToGRPCError wraps a domain error into a gRPC status error.
func MapToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case stderrors.Is(err, ErrValidation), stderrors.Is(err, ErrInvalidPassword):
		return status.Error(codes.InvalidArgument, err.Error())
	case stderrors.Is(err, ErrUserAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case stderrors.Is(err, ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, err.Error())
	case stderrors.Is(err, ErrImpersonation):
		return status.Error(codes.PermissionDenied, err.Error())
	case stderrors.Is(err, ErrSessionClosed):
		return status.Error(codes.ResourceExhausted, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
