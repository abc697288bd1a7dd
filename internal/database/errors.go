package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeNotNullViolation    = "23502"
	codeCheckViolation      = "23514"
	codeSerialization       = "40001"
	codeDeadlock            = "40P01"
	codeLockNotAvailable    = "55P03"
)

func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeSerialization:
			return ErrorClassSerialization
		case codeDeadlock:
			return ErrorClassDeadlock
		case codeLockNotAvailable:
			return ErrorClassTransient
		case codeUniqueViolation, codeForeignKeyViolation, codeNotNullViolation, codeCheckViolation:
			return ErrorClassPermanent
		}
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrorClassPermanent
	}

	return ErrorClassPermanent
}

func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}

// IsUniqueViolation reports whether err is a Postgres unique violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == codeUniqueViolation
}

// IsForeignKeyViolation reports whether err is a Postgres foreign key violation.
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == codeForeignKeyViolation
}

// NotFoundError reports a lookup by id that matched no record.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// UniqueViolationError reports a write rejected because Field must be unique.
type UniqueViolationError struct {
	Field string
	Value string
}

func (e *UniqueViolationError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Field, e.Value)
}

// ReferentialIntegrityError reports references to records that do not exist.
type ReferentialIntegrityError struct {
	Entity     string
	MissingIDs []int64
}

func (e *ReferentialIntegrityError) Error() string {
	if len(e.MissingIDs) == 0 {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	ids := make([]string, len(e.MissingIDs))
	for i, id := range e.MissingIDs {
		ids[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("%s not found: %s", e.Entity, strings.Join(ids, ", "))
}

// IsNotFound reports whether err carries a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

