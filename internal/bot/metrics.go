package bot

import "github.com/prometheus/client_golang/prometheus"

// Command outcomes used as the "outcome" label.
const (
	outcomeOK       = "ok"
	outcomeDenied   = "denied"
	outcomeInactive = "inactive"
	outcomeInvalid  = "invalid"
	outcomeUnknown  = "unknown"
	outcomeError    = "error"
)

var (
	// commandsTotal counts dispatched commands by verb and outcome. Unknown
	// verbs share the "unknown" label so cardinality stays bounded.
	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Chat commands dispatched, by verb and outcome.",
		},
		[]string{"verb", "outcome"},
	)

	// transcriptionsTotal counts finished transcription workflows.
	transcriptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_transcriptions_total",
			Help: "Audio transcriptions attempted, by outcome.",
		},
		[]string{"outcome"},
	)

	// transcriptionDuration covers download, provider call, and trimming.
	transcriptionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bot_transcription_duration_seconds",
			Help:    "Duration of the transcription workflow in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		},
	)

	// droppedMessages counts inbound messages that were not handled.
	droppedMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_messages_dropped_total",
			Help: "Inbound messages dropped before handling, by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(commandsTotal, transcriptionsTotal, transcriptionDuration, droppedMessages)
}
