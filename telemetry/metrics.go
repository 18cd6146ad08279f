package telemetry

// Histogram bucket definitions for different latency profiles
var (
	// EvalBuckets for engine evaluations (interpreter round trips)
	EvalBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

	// TransferBuckets for variable uploads and fetches
	TransferBuckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25}
)

// Session Metrics
var (
	// SessionsOpen tracks sessions currently holding an engine connection
	SessionsOpen Gauge = NoopStat{}

	// SessionOpensTotal counts open attempts by result (success, unavailable, failed)
	SessionOpensTotal CounterVec = noopCounterVec{}

	// RegistryEntries tracks native matrices held across all session registries
	RegistryEntries Gauge = NoopStat{}
)

// Engine Call Metrics
var (
	// EvaluationsTotal counts evaluations by result (success, failed)
	EvaluationsTotal CounterVec = noopCounterVec{}

	// EvalDurationSeconds measures evaluation latency
	EvalDurationSeconds Histogram = NoopStat{}

	// VariablesPutTotal counts variable uploads by result (success, failed)
	VariablesPutTotal CounterVec = noopCounterVec{}

	// PutDurationSeconds measures variable upload latency
	PutDurationSeconds Histogram = NoopStat{}

	// ValuesClassifiedTotal counts fetched values by host tag
	ValuesClassifiedTotal CounterVec = noopCounterVec{}

	// HandlesReleasedTotal counts native matrices released by registries
	HandlesReleasedTotal Counter = NoopStat{}
)

// API Metrics
var (
	// APIRequestsTotal counts host API requests by route and status class
	APIRequestsTotal CounterVec = noopCounterVec{}
)

// InitMetrics initializes all Prometheus metrics.
// Must be called after InitializeTelemetry().
func InitMetrics() {
	// Session Metrics
	SessionsOpen = NewGauge(
		"sessions_open",
		"Number of sessions with an open engine connection",
	)
	SessionOpensTotal = NewCounterVec(
		"session_opens_total",
		"Session open attempts by result",
		[]string{"result"},
	)
	RegistryEntries = NewGauge(
		"registry_entries",
		"Native matrices currently held by session registries",
	)

	// Engine Call Metrics
	EvaluationsTotal = NewCounterVec(
		"evaluations_total",
		"Total evaluations by result",
		[]string{"result"},
	)
	EvalDurationSeconds = NewHistogramWithBuckets(
		"eval_duration_seconds",
		"Evaluation duration in seconds",
		EvalBuckets,
	)
	VariablesPutTotal = NewCounterVec(
		"variables_put_total",
		"Variable uploads by result",
		[]string{"result"},
	)
	PutDurationSeconds = NewHistogramWithBuckets(
		"put_duration_seconds",
		"Variable upload duration in seconds",
		TransferBuckets,
	)
	ValuesClassifiedTotal = NewCounterVec(
		"values_classified_total",
		"Fetched values by host type tag",
		[]string{"tag"},
	)
	HandlesReleasedTotal = NewCounter(
		"handles_released_total",
		"Native matrices released by session registries",
	)

	// API Metrics
	APIRequestsTotal = NewCounterVec(
		"api_requests_total",
		"Host API requests by route and status class",
		[]string{"route", "status"},
	)
}
