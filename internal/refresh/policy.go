package refresh

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Policy decides whether a refresh is due at now.
type Policy interface {
	Due(last time.Time, hasLast bool, interval time.Duration, now time.Time) bool
	String() string
}

// ElapsedPolicy is due once interval has passed since the last publish.
type ElapsedPolicy struct{}

func (ElapsedPolicy) Due(last time.Time, hasLast bool, interval time.Duration, now time.Time) bool {
	return !hasLast || now.Sub(last) >= interval
}

func (ElapsedPolicy) String() string { return "elapsed" }

// CronPolicy is due once the first schedule boundary after the last publish
// has been reached. The operator interval is ignored; the schedule is the cadence.
type CronPolicy struct {
	spec  string
	sched cron.Schedule
}

// cronParser accepts both 5-field and 6-field (seconds) specs and descriptors.
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NewCronPolicy parses an align spec like "*/5 * * * *" or "@every 10m".
func NewCronPolicy(spec string) (*CronPolicy, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("align schedule required")
	}
	sched, err := cronParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid align schedule %q: %w", spec, err)
	}
	return &CronPolicy{spec: spec, sched: sched}, nil
}

func (p *CronPolicy) Due(last time.Time, hasLast bool, _ time.Duration, now time.Time) bool {
	if !hasLast {
		return true
	}
	return !p.sched.Next(last).After(now)
}

func (p *CronPolicy) String() string { return "cron(" + p.spec + ")" }

// PolicyFor returns CronPolicy for a non-empty align spec and ElapsedPolicy otherwise.
func PolicyFor(align string) (Policy, error) {
	if strings.TrimSpace(align) == "" {
		return ElapsedPolicy{}, nil
	}
	return NewCronPolicy(align)
}
