package report

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Scheduler writes the previous day's compliance report once per day.
type Scheduler struct {
	builder     *Builder
	storageRoot string
	dailyAt     string
	logger      *log.Logger
}

// NewScheduler constructs a scheduler.
func NewScheduler(builder *Builder, storageRoot, dailyAt string, logger *log.Logger) *Scheduler {
	return &Scheduler{
		builder:     builder,
		storageRoot: storageRoot,
		dailyAt:     dailyAt,
		logger:      logger,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.builder == nil || s.storageRoot == "" {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !s.shouldRun(now.UTC()) {
				continue
			}
			s.runOnce(ctx, now.UTC())
		}
	}
}

func (s *Scheduler) shouldRun(now time.Time) bool {
	hour, minute, err := parseDailyAt(s.dailyAt)
	if err != nil {
		return false
	}
	return now.Hour() == hour && now.Minute() == minute
}

func (s *Scheduler) runOnce(ctx context.Context, now time.Time) {
	day := now.AddDate(0, 0, -1)
	report, err := s.builder.Build(ctx, day)
	if err != nil {
		s.logger.Printf("report: build failed: %v", err)
		return
	}
	if err := s.write(report); err != nil {
		s.logger.Printf("report: write failed: %v", err)
	}
}

func (s *Scheduler) write(report DailyReport) error {
	if err := os.MkdirAll(s.storageRoot, 0o755); err != nil {
		return err
	}
	base := fmt.Sprintf("compliance-%s", report.Day.Format("2006-01-02"))

	xlsx, err := BuildReportXLSX(report)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(s.storageRoot, base+".xlsx"), xlsx, 0o644); err != nil {
		return err
	}

	pdf, err := BuildReportPDF(report)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(s.storageRoot, base+".pdf"), pdf, 0o644); err != nil {
		return err
	}
	s.logger.Printf("report: wrote %s for %d devices", base, len(report.Devices))
	return nil
}

func parseDailyAt(value string) (int, int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
