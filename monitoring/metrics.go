package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"rifa/models"
)

var (
	ticketOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rifa_ticket_operations_total",
			Help: "Total ticket operations",
		},
		[]string{"operation", "status"},
	)

	cacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rifa_cache_requests_total",
			Help: "Response cache lookups by result",
		},
		[]string{"result"},
	)

	ticketsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rifa_tickets",
			Help: "Current number of tickets per status",
		},
		[]string{"estado"},
	)

	reservationHold = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rifa_reservation_hold_seconds",
			Help:    "Time from reservation to confirmed payment",
			Buckets: prometheus.ExponentialBuckets(60, 2, 12),
		},
	)

	expiredReleases = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rifa_expired_releases_total",
			Help: "Reservations released because their hold expired",
		},
	)
)

// TrackTicketOperation counts an operation outcome, status is "success" or "error".
func TrackTicketOperation(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	ticketOperations.WithLabelValues(operation, result).Inc()
}

func TrackCacheRequest(result string) {
	cacheRequests.WithLabelValues(result).Inc()
}

func SetTicketCounts(counts map[models.Status]int) {
	for _, s := range []models.Status{models.StatusAvailable, models.StatusReserved, models.StatusPaid} {
		ticketsByStatus.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}

func TrackReservationHold(duration time.Duration) {
	reservationHold.Observe(duration.Seconds())
}

func TrackExpiredReleases(n int) {
	expiredReleases.Add(float64(n))
}
