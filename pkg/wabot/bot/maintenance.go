package bot

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/robfig/cron/v3"
)

// Maintenance runs the two periodic actions on a cron scheduler: the daily
// activity summary and the hourly memory sweep. The cron goroutine runs
// concurrently with the dispatcher, which is why the stores it touches are
// mutex-guarded.
type Maintenance struct {
	bot    *Bot
	cfg    MaintenanceConfig
	cron   *cron.Cron
	logger *slog.Logger

	// summaryChannel is the channel the owner summary is delivered on.
	summaryChannel string
}

// NewMaintenance creates the scheduler without starting it.
func NewMaintenance(b *Bot, cfg MaintenanceConfig, logger *slog.Logger) *Maintenance {
	return &Maintenance{
		bot:            b,
		cfg:            cfg,
		cron:           cron.New(),
		logger:         logger.With("component", "maintenance"),
		summaryChannel: "whatsapp",
	}
}

// SetSummaryChannel overrides where the daily summary is delivered.
func (m *Maintenance) SetSummaryChannel(name string) { m.summaryChannel = name }

// Start registers the cron entries and starts the scheduler.
func (m *Maintenance) Start() error {
	if _, err := m.cron.AddFunc(m.cfg.SummarySpec, m.RunDailySummary); err != nil {
		return fmt.Errorf("scheduling daily summary: %w", err)
	}
	if _, err := m.cron.AddFunc(m.cfg.SweepSpec, m.RunMemorySweep); err != nil {
		return fmt.Errorf("scheduling memory sweep: %w", err)
	}

	m.cron.Start()
	m.logger.Info("maintenance scheduled",
		"summary_spec", m.cfg.SummarySpec,
		"sweep_spec", m.cfg.SweepSpec,
	)
	return nil
}

// Stop stops the scheduler. Running jobs finish.
func (m *Maintenance) Stop() {
	if m.cron != nil {
		m.cron.Stop()
	}
}

// RunDailySummary summarizes the activity log via the completion capability
// and sends the result to the owner, then clears the log. An empty log is a
// no-op: no call, no message. Exported so tests and admin tooling can
// trigger it directly.
func (m *Maintenance) RunDailySummary() {
	entries := m.bot.Activity().Drain()
	if len(entries) == 0 {
		m.logger.Debug("daily summary skipped, no activity")
		return
	}

	prompt := "Summarize this bot activity log as a short daily report for the operator:\n\n" +
		strings.Join(entries, "\n")

	summary, err := m.bot.completer.Complete(m.bot.context(), "", nil, prompt)
	if err != nil {
		m.logger.Error("daily summary completion failed", "error", err, "entries", len(entries))
		return
	}

	if err := m.bot.SendToOwner(m.summaryChannel, "*Daily Summary* 📋\n\n"+summary); err != nil {
		m.logger.Error("daily summary delivery failed", "error", err)
		return
	}
	m.logger.Info("daily summary sent", "entries", len(entries))
}

// RunMemorySweep purges the whole memory window once it tracks more
// conversations than the threshold — a coarse full purge, not an eviction.
// When a session threshold is configured, the durable session map gets the
// same treatment.
func (m *Maintenance) RunMemorySweep() {
	cfg := m.bot.config.Memory

	if n := m.bot.Memory().Conversations(); n > cfg.SweepThreshold {
		m.bot.Memory().Reset()
		m.logger.Info("memory window purged", "conversations", n, "threshold", cfg.SweepThreshold)
	}

	if cfg.SessionThreshold > 0 {
		if n := m.bot.Sessions().Len(); n > cfg.SessionThreshold {
			m.bot.Sessions().Clear()
			m.logger.Info("session store purged", "sessions", n, "threshold", cfg.SessionThreshold)
		}
	}
}
