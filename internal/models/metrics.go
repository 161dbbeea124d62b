package models

import "time"

// SystemMetrics is a JSON snapshot of process counters.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	SessionsCreated          uint64    `json:"sessions_created"`
	SessionConflicts         uint64    `json:"session_conflicts"`
	AttendanceMarks          uint64    `json:"attendance_marks"`
	BookingsCreated          uint64    `json:"bookings_created"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
