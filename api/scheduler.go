/*
scheduler.go - Daily day-end trigger

PURPOSE:
  Calls the orchestrator once per day at a configured hour. The manual
  endpoint and this trigger call the same Orchestrator.Run, which
  tolerates concurrent invocation; the in-process last-run guard only
  stops this trigger from firing twice for one date.

CONFIGURATION:
  - Hour:          Local hour (fixed zone) to run at (default 18)
  - CheckInterval: How often to check the clock (default 1 minute)

USAGE:
  scheduler := NewDayEndScheduler(orch)
  scheduler.Start()
  // ... later
  scheduler.Stop()
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/campus/attendance-engine/calendar"
	"github.com/campus/attendance-engine/dayend"
)

// DayEndScheduler fires the day-end run once per date.
type DayEndScheduler struct {
	Orchestrator  *dayend.Orchestrator
	Hour          int
	CheckInterval time.Duration

	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastRun string // date string of the last triggered run
}

// NewDayEndScheduler creates a scheduler with defaults.
func NewDayEndScheduler(orch *dayend.Orchestrator) *DayEndScheduler {
	return &DayEndScheduler{
		Orchestrator:  orch,
		Hour:          18,
		CheckInterval: time.Minute,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (s *DayEndScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)
	go s.run()

	log.Printf("[Scheduler] Started: day-end at %02d:00, check interval %v", s.Hour, s.CheckInterval)
}

// Stop stops the scheduler.
func (s *DayEndScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (s *DayEndScheduler) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ticker.C:
			s.check()
		case <-s.stop:
			return
		}
	}
}

func (s *DayEndScheduler) check() {
	now := time.Now().UTC()
	if now.Hour() < s.Hour {
		return
	}
	today := calendar.Today()

	s.mu.Lock()
	if s.lastRun == today.String() {
		s.mu.Unlock()
		return
	}
	s.lastRun = today.String()
	s.mu.Unlock()

	s.trigger(today)
}

func (s *DayEndScheduler) trigger(date calendar.Date) {
	log.Printf("[Scheduler] Triggering day-end for %s", date)
	result, err := s.Orchestrator.Run(context.Background(), date, dayend.Options{})
	if err != nil {
		log.Printf("[Scheduler] Day-end run for %s failed: %v", date, err)
		return
	}
	log.Printf("[Scheduler] Day-end %s: sent=%d failed=%d skipped=%d",
		date, result.SentCount, result.FailedCount, result.SkippedScopes)
}
