// Package redis opens the go-redis client behind the Redis lockout ledger.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"lockgate/internal/platform/config"
)

// Client is a go-redis client with readiness and pool metrics attached.
type Client struct {
	*redis.Client
}

// New dials and pings Redis. An empty URL means Redis is not configured and
// yields a nil client.
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout+time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close() //nolint:errcheck // init already failed
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{Client: client}, nil
}

// Health is the readiness check.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// Collector exposes pool statistics, read at scrape time.
func (c *Client) Collector() prometheus.Collector {
	return newPoolCollector(c.PoolStats)
}

var (
	poolHitsDesc    = poolDesc("hits_total", "Connections found idle in the pool.")
	poolMissesDesc  = poolDesc("misses_total", "Connections that had to be dialed.")
	poolTimeoutDesc = poolDesc("timeouts_total", "Waits for a connection that timed out.")
	poolStaleDesc   = poolDesc("stale_conns_total", "Stale connections removed from the pool.")
	poolTotalDesc   = poolDesc("total_conns", "Connections currently in the pool.")
	poolIdleDesc    = poolDesc("idle_conns", "Idle connections currently in the pool.")
)

func poolDesc(name, help string) *prometheus.Desc {
	return prometheus.NewDesc("lockgate_redis_pool_"+name, help, nil, nil)
}

type poolCollector struct {
	stats func() *redis.PoolStats
}

func newPoolCollector(stats func() *redis.PoolStats) *poolCollector {
	return &poolCollector{stats: stats}
}

func (p *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		poolHitsDesc, poolMissesDesc, poolTimeoutDesc, poolStaleDesc, poolTotalDesc, poolIdleDesc,
	} {
		ch <- d
	}
}

// Collect reports go-redis's cumulative counters as counters and the
// instantaneous connection counts as gauges.
func (p *poolCollector) Collect(ch chan<- prometheus.Metric) {
	s := p.stats()
	ch <- prometheus.MustNewConstMetric(poolHitsDesc, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(poolMissesDesc, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(poolTimeoutDesc, prometheus.CounterValue, float64(s.Timeouts))
	ch <- prometheus.MustNewConstMetric(poolStaleDesc, prometheus.CounterValue, float64(s.StaleConns))
	ch <- prometheus.MustNewConstMetric(poolTotalDesc, prometheus.GaugeValue, float64(s.TotalConns))
	ch <- prometheus.MustNewConstMetric(poolIdleDesc, prometheus.GaugeValue, float64(s.IdleConns))
}
