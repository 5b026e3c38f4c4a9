package db

import "context"

// Pinger is the subset of pgxpool.Pool used by the health probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingProbe reports database reachability for the health endpoint.
type PingProbe struct {
	pool Pinger
}

// NewPingProbe creates a probe over the given connection pool.
func NewPingProbe(pool Pinger) *PingProbe {
	return &PingProbe{pool: pool}
}

// Name identifies the probe in health check responses.
func (p *PingProbe) Name() string { return "database" }

// Check pings the database.
func (p *PingProbe) Check(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
