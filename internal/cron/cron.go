package cron

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/opsuite/opsuite-backend/internal/repository"
)

// Scheduler runs background maintenance jobs
type Scheduler struct {
	cron        *cron.Cron
	channelRepo repository.ChannelRepository
}

// NewScheduler creates a new scheduler
func NewScheduler(channelRepo repository.ChannelRepository) *Scheduler {
	return &Scheduler{
		cron:        cron.New(),
		channelRepo: channelRepo,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	// Member counters are updated inside the membership transaction; this
	// job heals rows written before that policy or touched out of band.
	s.cron.AddFunc("*/15 * * * *", func() {
		log.Println("[Cron] Running member count reconciliation...")
		s.reconcileMemberCounts()
	})

	s.cron.Start()
	log.Println("[Cron] Scheduler started")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[Cron] Scheduler stopped")
}

func (s *Scheduler) reconcileMemberCounts() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	corrected, err := s.channelRepo.ReconcileMemberCounts(ctx)
	if err != nil {
		log.Printf("[Cron] ❌ Member count reconciliation failed: %v", err)
		return
	}
	if corrected > 0 {
		log.Printf("[Cron] ✅ Corrected member_count on %d channels", corrected)
	}
}
