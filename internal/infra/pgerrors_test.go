package infra

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "identities_external_id_key"}
	wrapped := fmt.Errorf("insert identity: %w", dup)

	assert.True(t, IsUniqueViolation(wrapped, ""))
	assert.True(t, IsUniqueViolation(wrapped, "identities_external_id_key"))
	assert.False(t, IsUniqueViolation(wrapped, "tokens_code_key"))
	assert.False(t, IsUniqueViolation(errors.New("boom"), ""))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: pgerrcode.CheckViolation}, ""))
}

func TestMapErrorKeepsChain(t *testing.T) {
	pgErr := &pgconn.PgError{Code: pgerrcode.DeadlockDetected, Message: "deadlock"}
	err := MapError(pgErr)

	var target *pgconn.PgError
	assert.ErrorAs(t, err, &target)
	assert.Contains(t, err.Error(), "transaction conflict")

	plain := errors.New("plain")
	assert.Equal(t, plain, MapError(plain))
	assert.NoError(t, MapError(nil))
}
