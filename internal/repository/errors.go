// Package repository defines the sqlx-backed stores and the sentinel errors
// they share. Handlers and services distinguish failure cases with errors.Is.
package repository

import (
	"database/sql"
	"errors"
	"strings"
)

// ErrNotFound is returned when the target row does not exist (or is not
// visible to the caller). Handlers translate this into a 404 response.
var ErrNotFound = errors.New("not found")

// ErrDuplicateUsername and ErrDuplicateEmail surface unique-index violations
// on the users table.
var (
	ErrDuplicateUsername = errors.New("username already taken")
	ErrDuplicateEmail    = errors.New("email already registered")
)

// ErrConflict is returned for any other unique-index violation, such as a
// repeated tender reference number.
var ErrConflict = errors.New("conflict")

// ErrLastAdmin is returned when a change would leave no admin account.
var ErrLastAdmin = errors.New("cannot remove the last admin")

// isUniqueViolation recognises MySQL error 1062 and SQLite UNIQUE failures.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "1062") || strings.Contains(msg, "UNIQUE constraint failed")
}

// uniqueColumn maps a unique violation to ErrDuplicateUsername or
// ErrDuplicateEmail based on the column or key named in the driver message.
func uniqueColumn(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "users.username"), strings.Contains(msg, "uq_users_username"):
		return ErrDuplicateUsername
	case strings.Contains(msg, "users.email"), strings.Contains(msg, "uq_users_email"):
		return ErrDuplicateEmail
	}
	return ErrConflict
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
