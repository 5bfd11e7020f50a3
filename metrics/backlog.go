package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Positions is the read-only view of a ring the monitor samples. Every
// method must be safe to call from another goroutine.
type Positions interface {
	ProducerPosition() int64
	ConsumerPosition() int64
	Position() int64
}

// Ring names a sampled ring buffer.
type Ring struct {
	File      string
	Name      string
	Positions Positions
}

// GaugeVec is the subset of *prometheus.GaugeVec the monitor needs.
type GaugeVec interface {
	WithLabelValues(lvs ...string) prometheus.Gauge
}

// StartBacklogMonitor samples the backlog of each ring at every interval until
// ctx is done. The rings must stay mapped until it returns.
func StartBacklogMonitor(ctx context.Context, backlog, lag GaugeVec, rings []Ring, interval time.Duration) {
	sampleBacklog(backlog, lag, rings)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			sampleBacklog(backlog, lag, rings)
		}
	}
}

func sampleBacklog(backlog, lag GaugeVec, rings []Ring) {
	for _, r := range rings {
		producer := r.Positions.ProducerPosition()
		backlog.WithLabelValues(r.File, r.Name).Set(float64(producer - r.Positions.ConsumerPosition()))
		lag.WithLabelValues(r.File, r.Name).Set(float64(producer - r.Positions.Position()))
	}
}
