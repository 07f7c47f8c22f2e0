// Package metrics exports Prometheus collectors for generation sessions,
// extraction and LLM calls.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abhisek/mcqgen/internal/llm"
	"github.com/abhisek/mcqgen/internal/quiz"
)

const namespace = "mcqgen"

// Metrics holds all mcqgen Prometheus metrics.
type Metrics struct {
	reg *prometheus.Registry

	// Session metrics
	SessionsStarted  prometheus.Counter
	SessionsFinished *prometheus.CounterVec
	SessionDuration  *prometheus.HistogramVec
	ActiveSessions   prometheus.Gauge
	QuestionsPerRun  prometheus.Histogram

	// Extraction metrics
	QuestionsEmitted prometheus.Counter
	LinesRejected    *prometheus.CounterVec
	Fragments        prometheus.Counter
	FragmentBytes    prometheus.Counter

	// LLM metrics
	LLMCalls   *prometheus.CounterVec
	LLMLatency *prometheus.HistogramVec
	LLMTokens  *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

var (
	_ quiz.Observer    = (*Metrics)(nil)
	_ llm.CallObserver = (*Metrics)(nil)
)

// New creates the metrics on a private registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)
	m := &Metrics{reg: reg}
	m.initSessionMetrics(factory)
	m.initExtractionMetrics(factory)
	m.initLLMMetrics(factory)
	m.initHTTPMetrics(factory)
	return m
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

func (m *Metrics) initSessionMetrics(factory promauto.Factory) {
	m.SessionsStarted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_started_total",
		Help:      "Total generation sessions started",
	})

	m.SessionsFinished = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_finished_total",
		Help:      "Total generation sessions finished, by outcome",
	}, []string{"outcome"})

	m.SessionDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "session_duration_seconds",
		Help:      "Wall time of a generation session",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 180},
	}, []string{"outcome"})

	m.ActiveSessions = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Generation sessions currently streaming",
	})

	m.QuestionsPerRun = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "session_questions",
		Help:      "Questions delivered per session",
		Buckets:   []float64{0, 1, 2, 5, 10, 15, 20},
	})
}

func (m *Metrics) initExtractionMetrics(factory promauto.Factory) {
	m.QuestionsEmitted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "questions_emitted_total",
		Help:      "Total questions extracted and delivered",
	})

	m.LinesRejected = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lines_rejected_total",
		Help:      "Total candidate lines that failed validation, by reason",
	}, []string{"reason"})

	m.Fragments = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stream_fragments_total",
		Help:      "Total text fragments received from model streams",
	})

	m.FragmentBytes = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stream_bytes_total",
		Help:      "Total bytes of model output received",
	})
}

func (m *Metrics) initLLMMetrics(factory promauto.Factory) {
	m.LLMCalls = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "calls_total",
		Help:      "Total LLM calls, by provider, purpose, mode and status",
	}, []string{"provider", "purpose", "mode", "status"})

	m.LLMLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "call_duration_seconds",
		Help:      "LLM call latency",
		Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
	}, []string{"provider", "mode"})

	m.LLMTokens = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "tokens_total",
		Help:      "Tokens consumed, by provider and direction",
	}, []string{"provider", "direction"})
}

func (m *Metrics) initHTTPMetrics(factory promauto.Factory) {
	m.HTTPRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests, by route, method and status",
	}, []string{"route", "method", "status"})

	m.HTTPDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency, streaming responses included",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})
}

// SessionStarted marks a session as active. Pair with SessionFinished.
func (m *Metrics) SessionStarted() {
	m.SessionsStarted.Inc()
	m.ActiveSessions.Inc()
}

func (m *Metrics) FragmentReceived(bytes int) {
	m.Fragments.Inc()
	m.FragmentBytes.Add(float64(bytes))
}

func (m *Metrics) QuestionEmitted() {
	m.QuestionsEmitted.Inc()
}

func (m *Metrics) LineRejected(reason quiz.RejectReason) {
	m.LinesRejected.WithLabelValues(string(reason)).Inc()
}

func (m *Metrics) SessionFinished(outcome quiz.Outcome, questions int, elapsed time.Duration) {
	m.ActiveSessions.Dec()
	m.SessionsFinished.WithLabelValues(string(outcome)).Inc()
	m.SessionDuration.WithLabelValues(string(outcome)).Observe(elapsed.Seconds())
	m.QuestionsPerRun.Observe(float64(questions))
}

func (m *Metrics) ObserveLLMCall(provider, purpose string, streamed bool, latency time.Duration, usage llm.Usage, err error) {
	mode := "generate"
	if streamed {
		mode = "stream"
	}
	m.LLMCalls.WithLabelValues(provider, purpose, mode, callStatus(err)).Inc()
	m.LLMLatency.WithLabelValues(provider, mode).Observe(latency.Seconds())
	if usage.InputTokens > 0 {
		m.LLMTokens.WithLabelValues(provider, "input").Add(float64(usage.InputTokens))
	}
	if usage.OutputTokens > 0 {
		m.LLMTokens.WithLabelValues(provider, "output").Add(float64(usage.OutputTokens))
	}
}

// ObserveHTTP records one finished HTTP request.
func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func callStatus(err error) string {
	var (
		interrupted *llm.ErrStreamInterrupted
		rateLimit   *llm.ErrRateLimit
		auth        *llm.ErrAuth
		maxTokens   *llm.ErrMaxTokensExceeded
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &interrupted):
		return "interrupted"
	case errors.As(err, &rateLimit):
		return "rate_limited"
	case errors.As(err, &auth):
		return "auth"
	case errors.As(err, &maxTokens):
		return "max_tokens"
	default:
		return "error"
	}
}
