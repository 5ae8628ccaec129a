package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"NewsPipeline/internal/ports"
)

// CronScheduler triggers a job on a standard 5-field cron expression.
type CronScheduler struct {
	spec     string
	location *time.Location
	parser   cron.Parser

	mu   sync.Mutex
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler configured via cron expression string.
func NewCronScheduler(spec string, location *time.Location) *CronScheduler {
	if location == nil {
		location = time.Local
	}
	return &CronScheduler{
		spec:     spec,
		location: location,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

// Validate checks the expression without starting anything.
func (c *CronScheduler) Validate() error {
	if _, err := c.parser.Parse(c.spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", c.spec, err)
	}
	return nil
}

// Next reports the first activation after t.
func (c *CronScheduler) Next(t time.Time) (time.Time, error) {
	schedule, err := c.parser.Parse(c.spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", c.spec, err)
	}
	return schedule.Next(t.In(c.location)), nil
}

// Start registers job and begins the cron loop. The loop stops with ctx or Stop.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	runner := cron.New(
		cron.WithParser(c.parser),
		cron.WithLocation(c.location),
		cron.WithChain(cron.Recover(cron.DefaultLogger)),
	)
	if _, err := runner.AddFunc(c.spec, func() { job(time.Now().In(c.location)) }); err != nil {
		return fmt.Errorf("schedule %q: %w", c.spec, err)
	}
	runner.Start()
	c.cron = runner

	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()

	return nil
}

// Stop halts the cron loop and waits for a running job up to ctx.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	runner := c.cron
	c.cron = nil
	c.mu.Unlock()

	if runner == nil {
		return nil
	}

	done := runner.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
