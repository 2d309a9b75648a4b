package domain

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsTransientStoreFault(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, false},
		{"bad conn", driver.ErrBadConn, true},
		{"wrapped bad conn", fmt.Errorf("exec: %w", driver.ErrBadConn), true},
		{"net timeout", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"connection failure", &pgconn.PgError{Code: "08006"}, true},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock detected", &pgconn.PgError{Code: "40P01"}, true},
		{"cannot connect now", &pgconn.PgError{Code: "57P03"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"not null violation", &pgconn.PgError{Code: "23502"}, false},
		{"undefined table", &pgconn.PgError{Code: "42P01"}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransientStoreFault(tt.err))
		})
	}
}

func TestRunStateTerminal(t *testing.T) {
	for _, s := range []RunState{RunStateCompleted, RunStatePartiallyCompleted, RunStateAborted} {
		assert.True(t, s.Terminal(), string(s))
	}
	for _, s := range []RunState{RunStateIdle, RunStateExtracting, RunStateValidating, RunStateLoading} {
		assert.False(t, s.Terminal(), string(s))
	}
}

func TestKeyStrings(t *testing.T) {
	mk := MerchantKey{IDComercio: "7", IDBandera: 1}
	assert.Equal(t, "7/1", mk.String())
	sk := StoreKey{MerchantKey: mk, IDSucursal: 33}
	assert.Equal(t, "7/1/33", sk.String())
}
