// Package icron holds the cron dialect shared by configuration validation
// and the scheduled self-check.
package icron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Parser accepts standard five-field expressions, an optional leading
// seconds field and descriptors such as "@hourly".
var Parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour |
	cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// lookback windows searched, smallest first, for the previous trigger.
var lookback = []time.Duration{
	time.Minute,
	time.Hour,
	24 * time.Hour,
	31 * 24 * time.Hour,
	366 * 24 * time.Hour,
}

// TriggerInfo places a reference time between two self-check runs. It is
// logged when the self-check is scheduled.
type TriggerInfo struct {
	Expression string
	Next       time.Time
	// Last is zero when the schedule did not fire within the past year.
	Last time.Time

	UntilNext time.Duration
	SinceLast time.Duration
}

// Validate reports whether cronExpr can be scheduled.
func Validate(cronExpr string) error {
	_, err := parse(cronExpr)
	return err
}

// GetTriggerInfo returns the runs of cronExpr surrounding at.
func GetTriggerInfo(cronExpr string, at time.Time) (*TriggerInfo, error) {
	schedule, err := parse(cronExpr)
	if err != nil {
		return nil, err
	}

	info := &TriggerInfo{
		Expression: cronExpr,
		Next:       schedule.Next(at),
		Last:       previous(schedule, at),
	}
	info.UntilNext = info.Next.Sub(at)
	if !info.Last.IsZero() {
		info.SinceLast = at.Sub(info.Last)
	}
	return info, nil
}

func parse(cronExpr string) (cron.Schedule, error) {
	schedule, err := Parser.Parse(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return schedule, nil
}

// previous finds the latest trigger at or before at. Windows grow only while
// they hold no trigger, so the forward walk stays short.
func previous(schedule cron.Schedule, at time.Time) time.Time {
	for _, window := range lookback {
		t := schedule.Next(at.Add(-window))
		if t.After(at) {
			continue
		}
		for {
			next := schedule.Next(t)
			if next.After(at) || !next.After(t) {
				return t
			}
			t = next
		}
	}
	return time.Time{}
}
