// Package metrics exposes session and tool counters for Prometheus.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harunnryd/torque/internal/tool"
)

const defaultNamespace = "torque"

type Metrics struct {
	registry *prometheus.Registry

	ConnectsTotal    *prometheus.CounterVec
	DisconnectsTotal *prometheus.CounterVec
	ReconnectsTotal  *prometheus.CounterVec
	SessionsActive   prometheus.Gauge
	SessionDuration  prometheus.Histogram
	AudioFramesSent  prometheus.Counter
	ToolInvocations  *prometheus.CounterVec
	ToolDuration     *prometheus.HistogramVec
}

func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = defaultNamespace
	}
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		ConnectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_connects_total",
				Help:      "Connect attempts by result",
			},
			[]string{"result"},
		),
		DisconnectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_disconnects_total",
				Help:      "Disconnects by reason",
			},
			[]string{"reason"},
		),
		ReconnectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_reconnects_total",
				Help:      "Automatic reconnect attempts by result",
			},
			[]string{"result"},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_active",
				Help:      "Number of connected sessions",
			},
		),
		SessionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "session_duration_seconds",
				Help:      "Connected session lifetime in seconds",
				Buckets:   []float64{10, 30, 60, 300, 900, 1800, 3600},
			},
		),
		AudioFramesSent: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audio_frames_sent_total",
				Help:      "Captured audio frames sent to the agent",
			},
		),
		ToolInvocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_invocations_total",
				Help:      "Tool dispatches by tool and status",
			},
			[]string{"tool", "status"},
		),
		ToolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_duration_seconds",
				Help:      "Tool handler latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"tool"},
		),
	}

	registry.MustRegister(
		m.ConnectsTotal,
		m.DisconnectsTotal,
		m.ReconnectsTotal,
		m.SessionsActive,
		m.SessionDuration,
		m.AudioFramesSent,
		m.ToolInvocations,
		m.ToolDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveTool implements tool.Observer.
func (m *Metrics) ObserveTool(name string, status tool.Status, duration time.Duration) {
	m.ToolInvocations.WithLabelValues(name, string(status)).Inc()
	m.ToolDuration.WithLabelValues(name).Observe(duration.Seconds())
}

func (m *Metrics) SessionConnected() {
	m.ConnectsTotal.WithLabelValues("ok").Inc()
	m.SessionsActive.Inc()
}

func (m *Metrics) ConnectFailed(category string) {
	m.ConnectsTotal.WithLabelValues(category).Inc()
}

func (m *Metrics) SessionDisconnected(reason string, lifetime time.Duration) {
	m.DisconnectsTotal.WithLabelValues(reason).Inc()
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(lifetime.Seconds())
}

func (m *Metrics) Reconnected(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.ReconnectsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) FrameSent() {
	m.AudioFramesSent.Inc()
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Metrics server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
