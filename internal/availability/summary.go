package availability

// DaySummary is the per-day shape of the multi-day availability report.
type DaySummary struct {
	Date           string   `json:"date"`
	Weekday        string   `json:"weekday"`
	Status         Status   `json:"status"`
	FreeSlots      int      `json:"free_slots"`
	BookedSlots    int      `json:"booked_slots"`
	TotalSlots     int      `json:"total_slots"`
	AvailableTimes []string `json:"available_times"`
}

// Summarize renders computed days for the availability report. Times are
// formatted on the practice wall clock as "9:00 AM".
func Summarize(days []DayAvailability) []DaySummary {
	out := make([]DaySummary, 0, len(days))
	for _, d := range days {
		s := DaySummary{
			Date:           d.Date.Format("2006-01-02"),
			Weekday:        d.Date.Weekday().String(),
			Status:         d.Status,
			FreeSlots:      d.FreeCount,
			BookedSlots:    d.BookedCount,
			TotalSlots:     d.TotalCount,
			AvailableTimes: []string{},
		}
		for _, slot := range d.FreeSlots() {
			s.AvailableTimes = append(s.AvailableTimes, slot.Start.Format("3:04 PM"))
		}
		out = append(out, s)
	}
	return out
}
