package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "quizroom"

var (
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_created_total",
		Help:      "Number of quiz sessions created.",
	})

	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Number of sessions holding a join code.",
	})

	SessionsEnded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_ended_total",
		Help:      "Number of sessions that reached the end of their quiz.",
	})

	ParticipantsJoined = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "participants_joined_total",
		Help:      "Number of participants joined across all sessions.",
	})

	// AnswersSubmitted is labelled by result: correct, incorrect or rejected.
	AnswersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "answers_submitted_total",
		Help:      "Number of answer submissions by result.",
	}, []string{"result"})

	Broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcasts_total",
		Help:      "Number of room broadcasts by event.",
	}, []string{"event"})

	WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_deliveries_total",
		Help:      "Number of terminal webhook calls by status.",
	}, []string{"status"})

	WebsocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "websocket_connections",
		Help:      "Number of open WebSocket connections.",
	})
)
