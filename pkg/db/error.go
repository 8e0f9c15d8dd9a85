package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Kind tags a classified store failure.
type Kind int

const (
	KindOther Kind = iota
	KindUniqueViolation
	KindForeignKeyViolation
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindUniqueViolation:
		return "unique_violation"
	case KindForeignKeyViolation:
		return "foreign_key_violation"
	case KindNotFound:
		return "not_found"
	default:
		return "other"
	}
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// StoreError is the only error shape repositories hand back for driver
// failures. Callers switch on Kind.
type StoreError struct {
	Kind       Kind
	Code       string
	Constraint string
	Err        error
}

func (e *StoreError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("store %s (%s): %v", e.Kind, e.Constraint, e.Err)
	}
	return fmt.Sprintf("store %s: %v", e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Classify wraps err into a *StoreError. It returns nil for nil and leaves
// an existing *StoreError untouched.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var existing *StoreError
	if errors.As(err, &existing) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &StoreError{Kind: kindFromCode(pgErr.Code), Code: pgErr.Code, Constraint: pgErr.ConstraintName, Err: err}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		return &StoreError{Kind: kindFromCode(code), Code: code, Constraint: pqErr.Constraint, Err: err}
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &StoreError{Kind: KindNotFound, Err: err}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &StoreError{Kind: KindUniqueViolation, Code: pgUniqueViolation, Err: err}
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return &StoreError{Kind: KindForeignKeyViolation, Code: pgForeignKeyViolation, Err: err}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"), strings.Contains(msg, "Error 1062"):
		return &StoreError{Kind: KindUniqueViolation, Code: pgUniqueViolation, Err: err}
	case strings.Contains(msg, "FOREIGN KEY constraint failed"), strings.Contains(msg, "Error 1452"):
		return &StoreError{Kind: KindForeignKeyViolation, Code: pgForeignKeyViolation, Err: err}
	}
	return &StoreError{Kind: KindOther, Err: err}
}

func kindFromCode(code string) Kind {
	switch code {
	case pgUniqueViolation:
		return KindUniqueViolation
	case pgForeignKeyViolation:
		return KindForeignKeyViolation
	default:
		return KindOther
	}
}

// KindOf reports the Kind of a classified error, or KindOther.
func KindOf(err error) (Kind, bool) {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Kind, true
	}
	return KindOther, false
}
