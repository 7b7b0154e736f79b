package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus counters for the tokenization core. Registered on the default
// registry and served from /metrics.
var (
	TokensGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokenvault_tokens_generated_total",
		Help: "Tokens minted, labelled by token type.",
	}, []string{"type"})

	TokensRotated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tokenvault_tokens_rotated_total",
		Help: "Successful token rotations.",
	})

	TokensRevoked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tokenvault_tokens_revoked_total",
		Help: "Token revocations.",
	})

	Resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokenvault_resolutions_total",
		Help: "Token resolution attempts, labelled by outcome.",
	}, []string{"outcome"})

	GenerationCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tokenvault_generation_collisions_total",
		Help: "Value collisions hit during token generation.",
	})

	RemoteFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokenvault_remote_fallbacks_total",
		Help: "Remote authority failures that fell back to the local engine, labelled by operation.",
	}, []string{"operation"})

	TokensExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tokenvault_tokens_expired_total",
		Help: "Tokens flipped to EXPIRED by the sweep.",
	})

	TokensPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tokenvault_tokens_purged_total",
		Help: "Retired token rows deleted by the cleanup job.",
	})
)
