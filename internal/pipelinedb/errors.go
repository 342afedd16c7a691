package pipelinedb

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/retailops/goldpipe/internal/pipelinedb/models"
)

// IsUnavailable reports whether err means the backing store itself is
// unreachable, as opposed to a statement that failed on reachable
// infrastructure. The engine treats unavailable as fatal for the whole
// run: once the registry cannot be written, discovery correctness is
// gone.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, models.ErrConnectionFailed) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
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
		case pgErr.Code == "53300":
			// Too many connections
			return true
		}
	}

	return false
}
