package entity

// DashboardStats is the admin dashboard summary.
type DashboardStats struct {
	ActiveEvents      int64 `json:"active_events"`
	TotalParticipants int64 `json:"total_participants"`
	TestsCompleted    int64 `json:"tests_completed"`
	BookingsThisMonth int64 `json:"bookings_this_month"`
}

// EventBookingStats breaks down bookings of a single event by status.
type EventBookingStats struct {
	TotalBookings  int `json:"total_bookings"`
	ConfirmedCount int `json:"confirmed_count"`
	CancelledCount int `json:"cancelled_count"`
	CheckedInCount int `json:"checked_in_count"`
}

// UtilizationRate is the share of total capacity currently taken (0.0 to 1.0).
func (s *EventBookingStats) UtilizationRate(totalSlots int) float64 {
	if totalSlots == 0 {
		return 0.0
	}
	return float64(s.ConfirmedCount+s.CheckedInCount) / float64(totalSlots)
}

// CancellationRate is the share of processed bookings that were cancelled.
func (s *EventBookingStats) CancellationRate() float64 {
	if s.TotalBookings == 0 {
		return 0.0
	}
	return float64(s.CancelledCount) / float64(s.TotalBookings)
}
