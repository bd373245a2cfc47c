package db

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolStats is a point-in-time view of the connection pool, reported by the
// readiness probe.
type PoolStats struct {
	Total     int32  `json:"total"`
	Idle      int32  `json:"idle"`
	InUse     int32  `json:"inUse"`
	Max       int32  `json:"max"`
	Acquires  int64  `json:"acquires"`
	WaitTime  string `json:"waitTime"`
	Saturated bool   `json:"saturated"`
}

// Stats snapshots pool. Saturated means every connection is checked out and
// new queries will queue.
func Stats(pool *pgxpool.Pool) *PoolStats {
	s := pool.Stat()
	return &PoolStats{
		Total:     s.TotalConns(),
		Idle:      s.IdleConns(),
		InUse:     s.AcquiredConns(),
		Max:       s.MaxConns(),
		Acquires:  s.AcquireCount(),
		WaitTime:  s.AcquireDuration().String(),
		Saturated: s.MaxConns() > 0 && s.AcquiredConns() >= s.MaxConns(),
	}
}
