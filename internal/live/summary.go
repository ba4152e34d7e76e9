package live

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"

	"github.com/bpsr-logs/livemeter/internal/encounter"
	"github.com/bpsr-logs/livemeter/internal/model"
)

// DPS returns damage per second over the elapsed fight time.
func DPS(h model.HeaderInfo) int64 {
	if h.ElapsedMs <= 0 {
		return h.TotalDmg
	}
	return h.TotalDmg * 1000 / h.ElapsedMs
}

// Summary renders header stats for humans.
func Summary(h model.HeaderInfo) string {
	elapsed := time.Duration(h.ElapsedMs) * time.Millisecond
	return fmt.Sprintf("%s damage in %s (%s dps)",
		humanize.Comma(h.TotalDmg),
		durafmt.Parse(elapsed).LimitFirstN(2).String(),
		humanize.Comma(DPS(h)))
}

// LogSummary writes the current header stats to the log.
func (s *Service) LogSummary() {
	h, err := s.HeaderInfo()
	if errors.Is(err, encounter.ErrNoDamage) {
		s.logger.Info("Encounter summary: no damage recorded",
			"packets", s.Processed(),
			"droppedWhilePaused", s.Dropped())
		return
	}
	s.logger.Info("Encounter summary: "+Summary(h),
		"totalDmg", h.TotalDmg,
		"elapsedMs", h.ElapsedMs,
		"packets", s.Processed(),
		"droppedWhilePaused", s.Dropped())
}
