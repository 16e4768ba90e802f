package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FeedFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lunchbot_feed_fetches_total",
			Help: "Upstream feed fetches by outcome",
		},
		[]string{"result"},
	)

	MenusStored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lunchbot_menus_stored_total",
			Help: "Menu records created by source",
		},
		[]string{"source"},
	)

	Dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lunchbot_dispatches_total",
			Help: "Menu sends to channels by outcome",
		},
		[]string{"result"},
	)

	MessageUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lunchbot_message_updates_total",
			Help: "Re-renders of already sent menu messages by outcome",
		},
		[]string{"result"},
	)

	Reactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lunchbot_reactions_total",
			Help: "Reactions recorded per sentiment",
		},
		[]string{"sentiment"},
	)

	PendingToasts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lunchbot_pending_toasts",
			Help: "Ephemeral notices whose hide timer has not fired yet",
		},
	)
)

// Init registers metrics with Prometheus
func Init() {
	prometheus.MustRegister(FeedFetches)
	prometheus.MustRegister(MenusStored)
	prometheus.MustRegister(Dispatches)
	prometheus.MustRegister(MessageUpdates)
	prometheus.MustRegister(Reactions)
	prometheus.MustRegister(PendingToasts)
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
