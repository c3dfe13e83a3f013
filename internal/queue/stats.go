package queue

import "time"

// consultationStats tracks an exponentially weighted moving average of
// consultation durations. The first sample seeds the average.
type consultationStats struct {
	average   time.Duration
	samples   int64
	updatedAt time.Time
	version   int64
}

func (s *consultationStats) observe(d time.Duration, now time.Time, alpha float64) bool {
	if d <= 0 {
		return false
	}
	if s.samples == 0 {
		s.average = d
	} else {
		s.average = time.Duration(alpha*float64(d) + (1-alpha)*float64(s.average))
	}
	s.samples++
	s.updatedAt = now
	s.version++
	return true
}

func (s *consultationStats) averageOr(def time.Duration) time.Duration {
	if s.samples == 0 {
		return def
	}
	return s.average
}

func (s *consultationStats) snapshot(doctorID string) Stats {
	return Stats{
		DoctorID:  doctorID,
		Average:   s.average,
		Samples:   s.samples,
		UpdatedAt: s.updatedAt,
		Version:   s.version,
	}
}
