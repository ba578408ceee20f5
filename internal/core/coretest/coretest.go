// Package coretest provides in-memory Clock and Scheduler implementations
// for tests of the app and orch packages.
package coretest

import (
	"sync"
	"time"

	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/domain"
)

// Clock is a settable core.Clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(t time.Time) *Clock { return &Clock{now: t} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Scheduler records jobs instead of running them.
type Scheduler struct {
	mu   sync.Mutex
	jobs []domain.Job
	err  error
}

func (s *Scheduler) Schedule(job domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Fail makes every later Schedule return err.
func (s *Scheduler) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *Scheduler) Jobs() []domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Job(nil), s.jobs...)
}
