package utils

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrorUnknownBranch means the requesting branch id does not resolve to an
// active branch. Visibility can never be decided against it.
var ErrorUnknownBranch = errors.New("unknown branch")

// ErrorAlreadySold is a normal contention outcome: a concurrent sale consumed
// the serialized unit first. Callers must re-fetch and pick another unit, not retry.
var ErrorAlreadySold = errors.New("serialized unit already sold")

var ErrorNotAParent = errors.New("variant is not a parent variant")

var ErrorConcurrencyConflict = errors.New("concurrent modification detected")

var ErrorTimeout = errors.New("operation deadline exceeded")

// DuplicateSerialError reports two children sharing an identifier under the same parent.
type DuplicateSerialError struct {
	Serial string
}

func (e *DuplicateSerialError) Error() string {
	return fmt.Sprintf("duplicate serial %q under parent", e.Serial)
}

// ReferenceHit names one dependent table still referencing a variant.
type ReferenceHit struct {
	Table string `json:"table"`
	Count int64  `json:"count"`
}

// ReferencedEntityError carries the full hit list so the caller can choose a
// delete strategy without a second round-trip.
type ReferencedEntityError struct {
	VariantId int
	Hits      []ReferenceHit
}

func (e *ReferencedEntityError) Error() string {
	return fmt.Sprintf("variant %d is still referenced by %d table(s)", e.VariantId, len(e.Hits))
}

// WrapTxError maps low-level transaction failures into the engine taxonomy:
// context cancellation becomes ErrorTimeout, MySQL lock-wait timeouts and
// deadlocks become ErrorConcurrencyConflict. The cause stays wrapped for
// errors.Is checks.
func WrapTxError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrorTimeout, err)
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1205, 1213: // lock wait timeout, deadlock
			return fmt.Errorf("%w: %v", ErrorConcurrencyConflict, err)
		}
	}
	return err
}

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
