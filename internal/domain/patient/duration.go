package patient

import "time"

const minutesPerDay = 24 * 60

// Duration returns the minutes from start to end, both "HH:MM". An end
// earlier than start is taken to be on the next day. ok is false when
// either time is missing or malformed.
func Duration(start, end string) (minutes int, ok bool) {
	s, err := time.Parse("15:04", start)
	if err != nil {
		return 0, false
	}
	e, err := time.Parse("15:04", end)
	if err != nil {
		return 0, false
	}
	d := int(e.Sub(s).Minutes())
	if d < 0 {
		d += minutesPerDay
	}
	return d, true
}

func deriveDuration(c *ConsultationFields) {
	if d, ok := Duration(c.StartTime, c.EndTime); ok {
		c.DurationMinutes = d
	}
}
