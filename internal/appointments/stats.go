package appointments

import "github.com/shopspring/decimal"

// CloserStats are the performance aggregates shown for a closer. They are always
// derived from the appointment set and never stored.
type CloserStats struct {
	CloserID         string          `json:"closerId"`
	TotalCalls       int             `json:"totalCalls"`
	TotalConversions int             `json:"totalConversions"`
	TotalRevenue     decimal.Decimal `json:"totalRevenue"`
	ConversionRate   float64         `json:"conversionRate"`
}

// ComputeCloserStats aggregates the appointments assigned to closerID.
func ComputeCloserStats(closerID string, appts []Appointment) CloserStats {
	stats := CloserStats{CloserID: closerID, TotalRevenue: decimal.Zero}
	for i := range appts {
		if appts[i].AssignedTo(closerID) {
			stats.add(&appts[i])
		}
	}
	stats.finish()
	return stats
}

// StatsByCloser aggregates every assigned appointment in one pass, keyed by closer id.
func StatsByCloser(appts []Appointment) map[string]CloserStats {
	out := make(map[string]CloserStats)
	for i := range appts {
		a := &appts[i]
		if a.CloserID == nil {
			continue
		}
		stats, ok := out[*a.CloserID]
		if !ok {
			stats = CloserStats{CloserID: *a.CloserID, TotalRevenue: decimal.Zero}
		}
		stats.add(a)
		out[*a.CloserID] = stats
	}
	for id, stats := range out {
		stats.finish()
		out[id] = stats
	}
	return out
}

func (s *CloserStats) add(a *Appointment) {
	s.TotalCalls++
	if !a.Converted() {
		return
	}
	s.TotalConversions++
	if a.SaleValue.Valid {
		s.TotalRevenue = s.TotalRevenue.Add(a.SaleValue.Decimal)
	}
}

func (s *CloserStats) finish() {
	if s.TotalCalls == 0 {
		s.ConversionRate = 0
		return
	}
	s.ConversionRate = float64(s.TotalConversions) / float64(s.TotalCalls)
}
