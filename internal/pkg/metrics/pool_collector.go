package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
)

// RecordPostgresPool samples pgxpool statistics.
func RecordPostgresPool(pool *pgxpool.Pool) {
	stats := pool.Stat()

	StorePoolConnections.WithLabelValues("postgres", "in_use").Set(float64(stats.AcquiredConns()))
	StorePoolConnections.WithLabelValues("postgres", "idle").Set(float64(stats.IdleConns()))
	StorePoolConnections.WithLabelValues("postgres", "constructing").Set(float64(stats.ConstructingConns()))
	StorePoolConnections.WithLabelValues("postgres", "max").Set(float64(stats.MaxConns()))
}

// RecordRedisPool samples go-redis pool statistics.
func RecordRedisPool(client *goredis.Client) {
	stats := client.PoolStats()

	StorePoolConnections.WithLabelValues("redis", "in_use").Set(float64(stats.TotalConns - stats.IdleConns))
	StorePoolConnections.WithLabelValues("redis", "idle").Set(float64(stats.IdleConns))
	StorePoolConnections.WithLabelValues("redis", "stale").Set(float64(stats.StaleConns))
}
