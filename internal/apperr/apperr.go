// Package apperr holds the error kinds shared by the loaders, the query layer
// and the HTTP surface.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadyLoaded is returned by a store when a bulk table gained rows
	// between the existence probe and the insert.
	ErrAlreadyLoaded = errors.New("already loaded")
)

// Error carries a user-facing message for one of the kinds above.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Kind }

// NotFound builds an ErrNotFound with a user-facing detail.
func NotFound(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Invalid builds an ErrInvalidInput with a user-facing detail.
func Invalid(format string, args ...any) error {
	return &Error{Kind: ErrInvalidInput, Msg: fmt.Sprintf(format, args...)}
}

// FromPostgres reclassifies data exceptions (SQLSTATE class 22) and PostGIS
// internal errors (XX000, raised for malformed geometry) as invalid input.
// Other errors are returned unchanged.
func FromPostgres(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	if len(pgErr.Code) == 5 && (pgErr.Code[:2] == "22" || pgErr.Code == "XX000") {
		return &Error{Kind: ErrInvalidInput, Msg: pgErr.Message}
	}
	return err
}

// Status maps an error to the HTTP status the API reports for it.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrAlreadyLoaded):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Detail returns the message safe to show a client. Internal errors are not
// described.
func Detail(err error) string {
	if Status(err) == http.StatusInternalServerError {
		return "Internal server error"
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return err.Error()
}
