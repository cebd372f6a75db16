package utils_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"github.com/go-sql-driver/mysql"
)

func TestWrapTxError(t *testing.T) {
	ctx := context.Background()

	if got := utils.WrapTxError(ctx, nil); got != nil {
		t.Fatalf("nil error must pass through, got %v", got)
	}

	plain := errors.New("duplicate entry")
	if got := utils.WrapTxError(ctx, plain); got != plain {
		t.Fatalf("unrelated errors must pass through unchanged, got %v", got)
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	got := utils.WrapTxError(cancelled, errors.New("invalid connection"))
	if !errors.Is(got, utils.ErrorTimeout) {
		t.Fatalf("cancelled context must map to ErrorTimeout, got %v", got)
	}

	deadlock := &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}
	got = utils.WrapTxError(ctx, deadlock)
	if !errors.Is(got, utils.ErrorConcurrencyConflict) {
		t.Fatalf("deadlock must map to ErrorConcurrencyConflict, got %v", got)
	}

	lockWait := fmt.Errorf("commit: %w", &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"})
	got = utils.WrapTxError(ctx, lockWait)
	if !errors.Is(got, utils.ErrorConcurrencyConflict) {
		t.Fatalf("lock wait timeout must map to ErrorConcurrencyConflict, got %v", got)
	}

	other := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	if got := utils.WrapTxError(ctx, other); errors.Is(got, utils.ErrorConcurrencyConflict) {
		t.Fatal("non-contention mysql errors must not map to ErrorConcurrencyConflict")
	}
}
