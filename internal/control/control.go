package control

import "time"

// RetryBackoffSeconds computes exponential backoff with a fixed cap.
func RetryBackoffSeconds(attempt int) int {
	if attempt <= 0 {
		return 0
	}
	seconds := 1 << (attempt - 1)
	if seconds > 30 {
		return 30
	}
	return seconds
}

// RetryBackoff is RetryBackoffSeconds as a duration, never shorter than floor.
func RetryBackoff(attempt int, floor time.Duration) time.Duration {
	d := time.Duration(RetryBackoffSeconds(attempt)) * time.Second
	if d < floor {
		return floor
	}
	return d
}
