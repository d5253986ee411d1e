package database

import (
	"errors"

	"gorm.io/gorm"
)

// ErrNoConnection is returned when a dedicated connection cannot be checked
// out of the pool.
var ErrNoConnection = errors.New("database: no connection available")

// ConflictKind classifies a persistence failure so callers never have to
// inspect driver message text.
type ConflictKind int

const (
	ConflictNone ConflictKind = iota
	ConflictUnique
	ConflictForeignKey
	ConflictOther
)

func (k ConflictKind) String() string {
	switch k {
	case ConflictNone:
		return "none"
	case ConflictUnique:
		return "unique-violation"
	case ConflictForeignKey:
		return "foreign-key-violation"
	default:
		return "other"
	}
}

// Error wraps a failed statement with the operation that issued it
type Error struct {
	Op   string
	Kind ConflictKind
	Err  error
}

func (e *Error) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the conflict kind carried by err, classifying raw gorm
// errors when err was not produced by this package.
func KindOf(err error) ConflictKind {
	var dbErr *Error
	if errors.As(err, &dbErr) {
		return dbErr.Kind
	}
	return classify(err)
}

func classify(err error) ConflictKind {
	switch {
	case err == nil:
		return ConflictNone
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ConflictUnique
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return ConflictForeignKey
	default:
		return ConflictOther
	}
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var dbErr *Error
	if errors.As(err, &dbErr) {
		return err
	}
	return &Error{Op: op, Kind: classify(err), Err: err}
}
