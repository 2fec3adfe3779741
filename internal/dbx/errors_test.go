package dbx

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/mkarpis/chatdb/internal/common"
)

func pgError(code, msg string) *pgconn.PgError {
	return &pgconn.PgError{Code: code, Message: msg}
}

func TestMapError(t *testing.T) {
	plain := errors.New("plain failure")

	tests := []struct {
		name string
		in   error
		want error // sentinel expected via errors.Is; nil means unchanged
	}{
		{name: "nil", in: nil, want: nil},
		{name: "plain error unchanged", in: plain},
		{
			name: "serialization failure",
			in:   pgError(pgerrcode.SerializationFailure, "could not serialize access"),
			want: common.ErrSerializationFailure,
		},
		{
			name: "deadlock detected",
			in:   pgError(pgerrcode.DeadlockDetected, "deadlock detected"),
			want: common.ErrSerializationFailure,
		},
		{
			name: "foreign key violation",
			in:   pgError(pgerrcode.ForeignKeyViolation, "violates foreign key constraint"),
			want: common.ErrorConstraint,
		},
		{
			name: "check violation",
			in:   pgError(pgerrcode.CheckViolation, "violates check constraint"),
			want: common.ErrorConstraint,
		},
		{
			name: "wrapped pg error still classified",
			in:   fmt.Errorf("db error: %w", pgError(pgerrcode.UniqueViolation, "duplicate key")),
			want: common.ErrorConstraint,
		},
		{
			name: "unrelated sqlstate unchanged",
			in:   pgError(pgerrcode.SyntaxError, "syntax error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.in)
			if tt.in == nil {
				require.NoError(t, got)
				return
			}
			if tt.want == nil {
				require.Equal(t, tt.in, got)
				return
			}
			require.ErrorIs(t, got, tt.want)
		})
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	fk := pgError(pgerrcode.ForeignKeyViolation, "violates foreign key constraint")

	require.True(t, IsForeignKeyViolation(fk))
	require.True(t, IsForeignKeyViolation(fmt.Errorf("db error: %w", fk)))
	require.False(t, IsForeignKeyViolation(pgError(pgerrcode.CheckViolation, "check")))
	require.False(t, IsForeignKeyViolation(errors.New("plain")))
	require.False(t, IsForeignKeyViolation(nil))
}
