package negotiation

import (
	"sync"
	"time"
)

// Stats tracks aggregate negotiation activity since process start, backing
// the /status endpoint.
type Stats struct {
	mu             sync.Mutex
	inquiries      int64
	offersReceived int64
	dealsMade      int64
	dealValueTotal int64
	threadsOpened  int64
	threadsClosed  int64
	startedAt      time.Time
}

// NewStats creates a tracker with the uptime clock starting now.
func NewStats() *Stats {
	return &Stats{startedAt: time.Now()}
}

// RecordTurn counts one processed buyer turn; offer reports whether it
// carried a numeric offer.
func (s *Stats) RecordTurn(offer bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inquiries++
	if offer {
		s.offersReceived++
	}
}

// RecordDeal counts a closed deal at its final price.
func (s *Stats) RecordDeal(finalPrice int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dealsMade++
	s.dealValueTotal += finalPrice
}

// RecordThreadOpened counts a newly created negotiation thread.
func (s *Stats) RecordThreadOpened() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threadsOpened++
}

// RecordThreadClosed counts a thread reaching a terminal status.
func (s *Stats) RecordThreadClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threadsClosed++
}

// StatsSnapshot is a point-in-time view of the counters.
type StatsSnapshot struct {
	Inquiries      int64 `json:"inquiries"`
	OffersReceived int64 `json:"offers_received"`
	DealsMade      int64 `json:"deals_made"`
	// OpenNegotiations counts threads opened minus threads concluded since
	// process start; abandoned threads age out of the store without ever
	// concluding.
	OpenNegotiations int64   `json:"open_negotiations"`
	AverageDealPrice float64 `json:"average_deal_price"`
	UptimeSeconds    int64   `json:"uptime_seconds"`
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		Inquiries:        s.inquiries,
		OffersReceived:   s.offersReceived,
		DealsMade:        s.dealsMade,
		OpenNegotiations: s.threadsOpened - s.threadsClosed,
		UptimeSeconds:    int64(time.Since(s.startedAt).Seconds()),
	}
	if s.dealsMade > 0 {
		snap.AverageDealPrice = float64(s.dealValueTotal) / float64(s.dealsMade)
	}
	return snap
}
