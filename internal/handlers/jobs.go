package handlers

import (
	"context"
	"database/sql"
	"time"

	"github.com/anishghanwat/StoreMyBottleApp/internal/cellar"
	"github.com/anishghanwat/StoreMyBottleApp/pkg/config"
	"github.com/anishghanwat/StoreMyBottleApp/pkg/logging"
)

// JobManager runs background maintenance jobs. Currently just the expiry
// sweep, which keeps venue reporting tidy; settlement expires tokens
// lazily on its own.
type JobManager struct {
	db            *sql.DB
	logger        logging.Logger
	engine        *cellar.Engine
	sweepInterval time.Duration
	stopCh        chan struct{}
}

// NewJobManager creates a new job manager
func NewJobManager(database *sql.DB, log logging.Logger, redemptionEngine *cellar.Engine) *JobManager {
	return &JobManager{
		db:            database,
		logger:        log,
		engine:        redemptionEngine,
		sweepInterval: config.GetEnvDuration("EXPIRY_SWEEP_INTERVAL", 5*time.Minute),
		stopCh:        make(chan struct{}),
	}
}

// Start begins all background jobs
func (jm *JobManager) Start(ctx context.Context) {
	jm.logger.WithField("sweep_interval", jm.sweepInterval).Info("Starting cellarman job manager")
	go jm.runExpirySweep(ctx)
}

// Stop halts all background jobs
func (jm *JobManager) Stop() {
	close(jm.stopCh)
}

func (jm *JobManager) runExpirySweep(ctx context.Context) {
	ticker := time.NewTicker(jm.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if _, err := jm.engine.ExpireStale(sweepCtx); err != nil {
				jm.logger.WithError(err).Error("Expiry sweep failed")
			}
			cancel()
		case <-jm.stopCh:
			jm.logger.Info("Expiry sweep stopped")
			return
		case <-ctx.Done():
			return
		}
	}
}
