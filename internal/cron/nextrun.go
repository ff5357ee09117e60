package cron

import (
	"fmt"
	"time"

	"github.com/adhocore/gronx"
)

// ValidateSchedule checks a schedule's static constraints.
func ValidateSchedule(s Schedule) error {
	switch s.Kind {
	case KindAt:
		if s.AtMS == nil {
			return fmt.Errorf("at schedule requires a timestamp")
		}
	case KindEvery:
		if s.EveryMS == nil {
			return fmt.Errorf("every schedule requires an interval")
		}
		if *s.EveryMS < MinEveryMS {
			return fmt.Errorf("interval below minimum of 30 minutes")
		}
		if *s.EveryMS > MaxEveryMS {
			return fmt.Errorf("interval above maximum of 30 days")
		}
	case KindCron:
		if !gronx.New().IsValid(s.Expr) {
			return fmt.Errorf("invalid cron expression %q", s.Expr)
		}
	default:
		return fmt.Errorf("unknown schedule kind %q", s.Kind)
	}
	return nil
}

// NextRun computes the next execution time in epoch milliseconds, or nil
// when the schedule has no future occurrence.
//
// Cron expressions are evaluated in the schedule's IANA timezone so
// "0 9 * * *" means 9 AM in the owner's local time regardless of the
// process timezone. Comparison to now happens in UTC epoch only.
func NextRun(s Schedule, now time.Time) (*int64, error) {
	switch s.Kind {
	case KindAt:
		if s.AtMS == nil || *s.AtMS <= now.UnixMilli() {
			return nil, nil
		}
		v := *s.AtMS
		return &v, nil

	case KindEvery:
		if s.EveryMS == nil {
			return nil, fmt.Errorf("every schedule requires an interval")
		}
		if s.NotBeforeMS != nil && *s.NotBeforeMS > now.UnixMilli() {
			v := *s.NotBeforeMS
			return &v, nil
		}
		v := now.UnixMilli() + *s.EveryMS
		return &v, nil

	case KindCron:
		loc := time.UTC
		if s.TZ != "" {
			l, err := time.LoadLocation(s.TZ)
			if err != nil {
				return nil, fmt.Errorf("load timezone %q: %w", s.TZ, err)
			}
			loc = l
		}

		ref := now
		if s.NotBeforeMS != nil && *s.NotBeforeMS > now.UnixMilli() {
			ref = time.UnixMilli(*s.NotBeforeMS)
		}

		next, err := gronx.NextTickAfter(s.Expr, ref.In(loc), false)
		if err != nil {
			return nil, fmt.Errorf("next tick for %q: %w", s.Expr, err)
		}
		v := next.UnixMilli()
		return &v, nil

	default:
		return nil, fmt.Errorf("unknown schedule kind %q", s.Kind)
	}
}
