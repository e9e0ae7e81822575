package background

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/clinicauth/internal/clock"
)

// ExpiredLockouts drops lockouts that have ended
type ExpiredLockouts interface {
	CleanupExpired(ctx context.Context) (int, error)
}

// ExpiredRecoveries drops dead recovery codes and stale reset counters
type ExpiredRecoveries interface {
	CleanupExpired(ctx context.Context) (codes int, resets int, err error)
}

// IdleClients forgets in-memory clients not seen for ttl
type IdleClients interface {
	SweepIdle(ttl time.Duration) int
}

// StaleStorage drops client namespaces untouched since before
type StaleStorage interface {
	DeleteStale(ctx context.Context, before time.Time) (int, error)
}

// CleanupTargets are the stores the manager reclaims. Nil targets are skipped.
type CleanupTargets struct {
	Lockouts   ExpiredLockouts
	Recoveries ExpiredRecoveries
	Clients    IdleClients
	Storage    StaleStorage
}

// CleanupManager periodically reclaims memory held by expired auth state.
// Expiry itself is always evaluated lazily, so a missed run never changes
// an auth outcome.
type CleanupManager struct {
	targets       CleanupTargets
	clock         clock.Clock
	logger        *slog.Logger
	interval      time.Duration
	clientIdleTTL time.Duration
	storageTTL    time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	targets CleanupTargets,
	clk clock.Clock,
	logger *slog.Logger,
	interval time.Duration,
	clientIdleTTL time.Duration,
	storageTTL time.Duration,
) *CleanupManager {
	return &CleanupManager{
		targets:       targets,
		clock:         clk,
		logger:        logger,
		interval:      interval,
		clientIdleTTL: clientIdleTTL,
		storageTTL:    storageTTL,
		stopCh:        make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// CleanupReport counts what one run removed
type CleanupReport struct {
	Lockouts       int
	RecoveryCodes  int
	ResetCounters  int
	IdleClients    int
	StaleNamespace int
}

// RunOnce performs a single cleanup pass. A failing target is logged and the
// rest still run.
func (cm *CleanupManager) RunOnce(ctx context.Context) CleanupReport {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var report CleanupReport

	if cm.targets.Lockouts != nil {
		n, err := cm.targets.Lockouts.CleanupExpired(cleanupCtx)
		if err != nil {
			cm.logger.Error("failed to cleanup expired lockouts", slog.Any("error", err))
		}
		report.Lockouts = n
	}

	if cm.targets.Recoveries != nil {
		codes, resets, err := cm.targets.Recoveries.CleanupExpired(cleanupCtx)
		if err != nil {
			cm.logger.Error("failed to cleanup recovery state", slog.Any("error", err))
		}
		report.RecoveryCodes, report.ResetCounters = codes, resets
	}

	if cm.targets.Clients != nil && cm.clientIdleTTL > 0 {
		report.IdleClients = cm.targets.Clients.SweepIdle(cm.clientIdleTTL)
	}

	// Storage must outlive the longest possible session, or a returning
	// client would lose a live one.
	if cm.targets.Storage != nil && cm.storageTTL > 0 {
		n, err := cm.targets.Storage.DeleteStale(cleanupCtx, cm.clock.Now().Add(-cm.storageTTL))
		if err != nil {
			cm.logger.Error("failed to cleanup stale client storage", slog.Any("error", err))
		}
		report.StaleNamespace = n
	}

	if report != (CleanupReport{}) {
		cm.logger.Info("cleanup completed",
			slog.Int("lockouts", report.Lockouts),
			slog.Int("recovery_codes", report.RecoveryCodes),
			slog.Int("reset_counters", report.ResetCounters),
			slog.Int("idle_clients", report.IdleClients),
			slog.Int("stale_namespaces", report.StaleNamespace),
		)
	}
	return report
}

// Stop signals the cleanup manager to stop. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
