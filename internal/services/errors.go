package services

import (
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
)

// Error taxonomy shared by all services. Callers match with errors.Is; the wrapped message
// carries the detail shown to the client.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation failed")
	ErrConflict        = errors.New("conflict")

	// ErrBlocked is a Forbidden raised when the recipient has blocked the sender.
	ErrBlocked = fmt.Errorf("%w: You are blocked from messaging this user", ErrForbidden)
)

// ErrEmailExists is returned when registering with an email that is already in use.
var ErrEmailExists = fmt.Errorf("%w: Email already in use by another account", ErrConflict)

// ErrUsernameExists is returned when registering with a taken username.
var ErrUsernameExists = fmt.Errorf("%w: Username already taken", ErrConflict)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func forbiddenf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

// translateNoDocuments turns mongo.ErrNoDocuments into ErrNotFound for what.
func translateNoDocuments(err error, what string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return notFoundf("%s not found", what)
	}
	return err
}

// PublicMessage strips the taxonomy prefix from err, leaving the message meant for clients.
func PublicMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{ErrUnauthenticated, ErrForbidden, ErrNotFound, ErrValidation, ErrConflict} {
		msg = strings.TrimPrefix(msg, sentinel.Error()+": ")
	}
	return msg
}
