// Package metrics exposes per-generation simulation gauges to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"amigame/internal/model"
)

// Collector bundles the Prometheus metrics published while a run progresses.
// A nil *Collector is valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	Generation         prometheus.Gauge
	AverageUtility     *prometheus.GaugeVec
	Profile            *prometheus.GaugeVec
	GenerationsTotal   prometheus.Counter
	GenerationDuration prometheus.Histogram
}

// NewCollector registers the simulation metrics against reg, defaulting to
// the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	generation, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "amigame_generation",
		Help: "Generation index of the most recent record.",
	}), "amigame_generation")
	if err != nil {
		return nil, err
	}
	utility, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "amigame_average_utility",
		Help: "Population-average utility, labeled by side.",
	}, []string{"side"}), "amigame_average_utility")
	if err != nil {
		return nil, err
	}
	profile, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "amigame_profile",
		Help: "Expected per-node attack or defence intensity, labeled by side and node.",
	}, []string{"side", "node"}), "amigame_profile")
	if err != nil {
		return nil, err
	}
	total, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "amigame_generations_total",
		Help: "Total number of recorded generations.",
	}), "amigame_generations_total")
	if err != nil {
		return nil, err
	}
	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "amigame_generation_duration_seconds",
		Help:    "Time spent replicating one generation.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}), "amigame_generation_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:           gatherer,
		Generation:         generation,
		AverageUtility:     utility,
		Profile:            profile,
		GenerationsTotal:   total,
		GenerationDuration: duration,
	}, nil
}

// Observe publishes one generation record. labels names the tree nodes in
// profile order; nodes without a label are reported by index.
func (c *Collector) Observe(record model.GenerationRecord, labels []string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Generation.Set(float64(record.Generation))
	c.AverageUtility.WithLabelValues("attacker").Set(record.AttackerUtility)
	c.AverageUtility.WithLabelValues("defender").Set(record.DefenderUtility)
	for i, v := range record.AttackProfile {
		c.Profile.WithLabelValues("attacker", nodeLabel(labels, i)).Set(v)
	}
	for i, v := range record.DefenceProfile {
		c.Profile.WithLabelValues("defender", nodeLabel(labels, i)).Set(v)
	}
	c.GenerationsTotal.Inc()
	if elapsed > 0 {
		c.GenerationDuration.Observe(elapsed.Seconds())
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func nodeLabel(labels []string, i int) string {
	if i < len(labels) && labels[i] != "" {
		return labels[i]
	}
	return fmt.Sprintf("n%d", i)
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, histogram prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(histogram); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return histogram, nil
}
