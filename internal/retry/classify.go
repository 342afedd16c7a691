package retry

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/retailops/goldpipe/internal/pipelinedb/models"
)

// DefaultClassifier treats transient infrastructure failures as retryable
// and everything else, notably data and constraint violations, as
// fail-fast. Retrying bad data cannot fix it; retrying a flaky connection
// often can.
func DefaultClassifier(err error) bool {
	if err == nil {
		return false
	}

	// A canceled caller must not be retried against
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	if errors.Is(err, models.ErrConnectionFailed) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"):
			// Class 08: connection exceptions
			return true
		case pgErr.Code == "57P01" || pgErr.Code == "57P02" || pgErr.Code == "57P03":
			// Server shutdown / crash / cannot connect now
			return true
		case pgErr.Code == "40001" || pgErr.Code == "40P01":
			// Serialization failure / deadlock
			return true
		case pgErr.Code == "53300":
			// Too many connections
			return true
		}
		// Class 22 (data), class 23 (integrity) and the rest fail fast
		return false
	}

	return false
}
