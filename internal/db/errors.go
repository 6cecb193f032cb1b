package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// Repository errors
var (
	ErrNotFound   = errors.New("record not found")
	ErrDuplicate  = errors.New("duplicate record")
	ErrForeignKey = errors.New("foreign key constraint violation")
	ErrConstraint = errors.New("check constraint violation")
)

// violation pairs the constraint kind named in a SQLite error message with
// the repository error it surfaces as
type violation struct {
	marker string
	err    error
}

var sqliteViolations = []violation{
	{"unique constraint", ErrDuplicate},
	{"foreign key constraint", ErrForeignKey},
	{"check constraint", ErrConstraint},
}

// IsNotFound reports whether err means the record does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicate reports whether err is a unique index violation, such as a
// second project with the same name
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// MapGormError translates GORM and SQLite failures into repository errors.
// Constraint violations keep the driver message for logging.
func MapGormError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	msg := strings.ToLower(err.Error())
	if v, ok := lo.Find(sqliteViolations, func(v violation) bool {
		return strings.Contains(msg, v.marker)
	}); ok {
		return fmt.Errorf("%w: %s", v.err, err.Error())
	}
	return err
}
