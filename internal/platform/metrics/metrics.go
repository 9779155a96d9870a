package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus collectors for the compositor. It implements
// render.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal prometheus.Counter
	errorsTotal   prometheus.Counter

	ticksTotal              prometheus.Counter
	tickSeconds             prometheus.Histogram
	framesConsumedTotal     prometheus.Counter
	framesCoalescedTotal    prometheus.Counter
	encoderFramesTotal      prometheus.Counter
	gpuErrorsTotal          prometheus.Counter
	recordingsStartedTotal  prometheus.Counter
	recordingsFinishedTotal prometheus.Counter
	recording               prometheus.Gauge
	fps                     prometheus.Gauge
	openSessions            prometheus.Gauge
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compositor_http_requests_total",
			Help: "Total number of control API requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compositor_http_errors_total",
			Help: "Total number of control API responses with status >= 400",
		}),
		ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compositor_ticks_total",
			Help: "Render loop iterations",
		}),
		tickSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "compositor_tick_duration_seconds",
			Help:    "Time spent in a render tick before pacing",
			Buckets: []float64{0.001, 0.002, 0.004, 0.008, 0.012, 0.016, 0.025, 0.05, 0.1},
		}),
		framesConsumedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compositor_frames_consumed_total",
			Help: "Source frames latched by the render loop",
		}),
		framesCoalescedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compositor_frames_coalesced_total",
			Help: "Frame signals collapsed into an already pending one",
		}),
		encoderFramesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compositor_encoder_frames_total",
			Help: "Frames presented to the encoder surface",
		}),
		gpuErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compositor_gpu_errors_total",
			Help: "GPU errors drained after setup and each tick",
		}),
		recordingsStartedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compositor_recordings_started_total",
			Help: "Recording sessions started through the control API",
		}),
		recordingsFinishedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compositor_recordings_finished_total",
			Help: "Recordings whose encoder surface was released",
		}),
		recording: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "compositor_recording",
			Help: "1 while frames are presented to an encoder surface",
		}),
		fps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "compositor_fps",
			Help: "Render loop ticks per second over the last second",
		}),
		openSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "compositor_open_sessions",
			Help: "Recording sessions not yet finished",
		}),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.ticksTotal,
		m.tickSeconds,
		m.framesConsumedTotal,
		m.framesCoalescedTotal,
		m.encoderFramesTotal,
		m.gpuErrorsTotal,
		m.recordingsStartedTotal,
		m.recordingsFinishedTotal,
		m.recording,
		m.fps,
		m.openSessions,
	)
	return m
}

// IncRequests increments the request counter.
func (m *Metrics) IncRequests() { m.requestsTotal.Inc() }

// IncErrors increments the error response counter.
func (m *Metrics) IncErrors() { m.errorsTotal.Inc() }

func (m *Metrics) IncTicks()                   { m.ticksTotal.Inc() }
func (m *Metrics) ObserveTick(d time.Duration) { m.tickSeconds.Observe(d.Seconds()) }
func (m *Metrics) IncFramesConsumed()          { m.framesConsumedTotal.Inc() }
func (m *Metrics) AddFramesCoalesced(n uint64) { m.framesCoalescedTotal.Add(float64(n)) }
func (m *Metrics) IncEncoderFrames()           { m.encoderFramesTotal.Inc() }
func (m *Metrics) AddGPUErrors(n int)          { m.gpuErrorsTotal.Add(float64(n)) }
func (m *Metrics) IncRecordingsFinished()      { m.recordingsFinishedTotal.Inc() }
func (m *Metrics) SetFPS(fps float64)          { m.fps.Set(fps) }

// SetRecording sets the recording gauge.
func (m *Metrics) SetRecording(active bool) {
	if active {
		m.recording.Set(1)
		return
	}
	m.recording.Set(0)
}

// IncRecordingsStarted increments the started sessions counter.
func (m *Metrics) IncRecordingsStarted() { m.recordingsStartedTotal.Inc() }

// SetOpenSessions sets the open sessions gauge.
func (m *Metrics) SetOpenSessions(n int) { m.openSessions.Set(float64(n)) }

// Handler serves the registry. updateGauges runs before each scrape.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		h.ServeHTTP(w, r)
	})
}
