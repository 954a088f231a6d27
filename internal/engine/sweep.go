package engine

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tradementor/capitalengine/internal/logging"
)

// Sweeper periodically reconciles every user with open trades, healing
// available-funds drift that accumulated since their last page load.
type Sweeper struct {
	engine  *Engine
	log     *logging.StandardLogger
	timeout time.Duration
}

func NewSweeper(engine *Engine, log *logging.StandardLogger) *Sweeper {
	return &Sweeper{
		engine:  engine,
		log:     log.WithComponent("reconciliation_sweep"),
		timeout: 2 * time.Minute,
	}
}

// Schedule registers the sweep on the given cron runner.
func (s *Sweeper) Schedule(c *cron.Cron, spec string) error {
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.Run(ctx)
	})
	return err
}

// Run reconciles all users that currently have open trades.
func (s *Sweeper) Run(ctx context.Context) {
	profile := s.engine.Profile()
	if !profile.TradesTable {
		return
	}

	query := "SELECT DISTINCT user_id FROM trades WHERE " + profile.openPredicate()
	rows, err := s.engine.pool.Query(ctx, query)
	if err != nil {
		s.log.WithError(err).Warn("sweep user listing failed")
		return
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			s.log.WithError(err).Warn("sweep user scan failed")
			return
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		s.log.WithError(err).Warn("sweep user iteration failed")
		return
	}

	healed := 0
	for _, id := range userIDs {
		if snap := s.engine.Reconcile(ctx, id); snap.Healed {
			healed++
		}
	}

	if healed > 0 {
		s.log.WithFields(map[string]interface{}{
			"users":  len(userIDs),
			"healed": healed,
		}).Info("reconciliation sweep healed drift")
	}
}
