package sql

import (
	"context"
	"net/http"
)

func (s *SQL) Health(ctx context.Context) (int, string, error) {
	if err := s.db.PingContext(ctx); err != nil {
		return http.StatusServiceUnavailable, "coin store unreachable", err
	}

	return http.StatusOK, "OK", nil
}
