package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/retailops/goldpipe/internal/pipelinedb/models"
	"github.com/stretchr/testify/assert"
)

type timeoutError struct{}

func (timeoutError) Error() string { return "i/o timeout" }

func (timeoutError) Timeout() bool { return true }

func (timeoutError) Temporary() bool { return true }

func TestDefaultClassifier(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection sentinel", models.ErrConnectionFailed, true},
		{"wrapped sentinel", fmt.Errorf("claim: %w", models.ErrConnectionFailed), true},
		{"context deadline", context.DeadlineExceeded, true},
		{"context canceled", context.Canceled, false},
		{"net timeout", timeoutError{}, true},
		{"connection exception 08000", &pgconn.PgError{Code: "08000"}, true},
		{"connection failure 08006", &pgconn.PgError{Code: "08006"}, true},
		{"admin shutdown 57P01", &pgconn.PgError{Code: "57P01"}, true},
		{"cannot connect now 57P03", &pgconn.PgError{Code: "57P03"}, true},
		{"serialization failure 40001", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock detected 40P01", &pgconn.PgError{Code: "40P01"}, true},
		{"too many connections 53300", &pgconn.PgError{Code: "53300"}, true},
		{"division by zero 22012", &pgconn.PgError{Code: "22012"}, false},
		{"numeric out of range 22003", &pgconn.PgError{Code: "22003"}, false},
		{"not null violation 23502", &pgconn.PgError{Code: "23502"}, false},
		{"unique violation 23505", &pgconn.PgError{Code: "23505"}, false},
		{"syntax error 42601", &pgconn.PgError{Code: "42601"}, false},
		{"plain business error", errors.New("negative revenue"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultClassifier(tt.err))
		})
	}
}
