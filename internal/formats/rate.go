package formats

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInexactRate is returned for frame rates written as decimals.
var ErrInexactRate = errors.New("frame rate must be an integer or a fraction")

// Rate is an exact frame rate expressed as a fraction.
type Rate struct {
	Num int
	Den int
}

// ParseRate accepts "30" or "30000/1001". Decimal notation is rejected.
func ParseRate(value string) (Rate, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Rate{}, fmt.Errorf("parse rate: %w", ErrInexactRate)
	}
	if strings.ContainsAny(trimmed, ".,eE") {
		return Rate{}, fmt.Errorf("parse rate %q: %w", trimmed, ErrInexactRate)
	}
	num, den := trimmed, "1"
	if idx := strings.IndexByte(trimmed, '/'); idx >= 0 {
		num, den = trimmed[:idx], trimmed[idx+1:]
	}
	n, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil {
		return Rate{}, fmt.Errorf("parse rate %q: %w", trimmed, ErrInexactRate)
	}
	d, err := strconv.Atoi(strings.TrimSpace(den))
	if err != nil {
		return Rate{}, fmt.Errorf("parse rate %q: %w", trimmed, ErrInexactRate)
	}
	if n <= 0 || d <= 0 {
		return Rate{}, fmt.Errorf("parse rate %q: numerator and denominator must be positive", trimmed)
	}
	return Rate{Num: n, Den: d}.reduce(), nil
}

// IsZero reports whether the rate is unset.
func (r Rate) IsZero() bool { return r.Num == 0 || r.Den == 0 }

// Float returns the approximate frames per second.
func (r Rate) Float() float64 {
	if r.IsZero() {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// String renders the rate the way ffmpeg expects it on the command line.
func (r Rate) String() string {
	if r.IsZero() {
		return "0"
	}
	if r.Den == 1 {
		return strconv.Itoa(r.Num)
	}
	return strconv.Itoa(r.Num) + "/" + strconv.Itoa(r.Den)
}

// Frames converts a duration in seconds into a frame count, rounding down.
func (r Rate) Frames(seconds float64) int {
	if r.IsZero() || seconds <= 0 {
		return 0
	}
	return int(seconds * float64(r.Num) / float64(r.Den))
}

// Seconds converts a frame index into a time offset.
func (r Rate) Seconds(frames int) float64 {
	if r.IsZero() {
		return 0
	}
	return float64(frames) * float64(r.Den) / float64(r.Num)
}

func (r Rate) reduce() Rate {
	a, b := r.Num, r.Den
	for b != 0 {
		a, b = b, a%b
	}
	if a <= 1 {
		return r
	}
	return Rate{Num: r.Num / a, Den: r.Den / a}
}
