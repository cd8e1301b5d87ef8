package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// HealthStatus mirrors pkg/database/health.go's HealthStatus, adapted
// to pgxpool's Stat() shape.
type HealthStatus struct {
	Status        string `json:"status"`
	ResponseTime  int64  `json:"response_time_ms"`
	TotalConns    int32  `json:"total_conns"`
	AcquiredConns int32  `json:"acquired_conns"`
	IdleConns     int32  `json:"idle_conns"`
	MaxConns      int32  `json:"max_conns"`
}

// Health checks database connectivity and returns connection pool
// statistics (pkg/database/health.go::Health).
func Health(ctx context.Context, pool *pgxpool.Pool) (*HealthStatus, error) {
	start := time.Now()

	if err := pool.Ping(ctx); err != nil {
		return &HealthStatus{Status: "unhealthy", ResponseTime: time.Since(start).Milliseconds()}, err
	}

	stat := pool.Stat()
	return &HealthStatus{
		Status:        "healthy",
		ResponseTime:  time.Since(start).Milliseconds(),
		TotalConns:    stat.TotalConns(),
		AcquiredConns: stat.AcquiredConns(),
		IdleConns:     stat.IdleConns(),
		MaxConns:      stat.MaxConns(),
	}, nil
}
