package icron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Parser accepts six-field expressions (leading seconds) and descriptors
// such as "@hourly".
var Parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour |
	cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func Parse(cronExpr string) (cron.Schedule, error) {
	schedule, err := Parser.Parse(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return schedule, nil
}

type TriggerInfo struct {
	Expression    string
	Next          time.Time
	TimeUntilNext time.Duration
	Upcoming      []time.Time
}

// GetTriggerInfo reports the next count activations after refTime.
func GetTriggerInfo(cronExpr string, refTime time.Time, count int) (*TriggerInfo, error) {
	schedule, err := Parse(cronExpr)
	if err != nil {
		return nil, err
	}
	if count < 1 {
		count = 1
	}

	upcoming := make([]time.Time, 0, count)
	at := refTime
	for range count {
		at = schedule.Next(at)
		if at.IsZero() {
			break
		}
		upcoming = append(upcoming, at)
	}
	if len(upcoming) == 0 {
		return nil, fmt.Errorf("cron expression %q never fires", cronExpr)
	}

	return &TriggerInfo{
		Expression:    cronExpr,
		Next:          upcoming[0],
		TimeUntilNext: upcoming[0].Sub(refTime),
		Upcoming:      upcoming,
	}, nil
}
