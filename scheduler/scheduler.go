package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"immo_scrooper/config"
	"immo_scrooper/logging"
	"immo_scrooper/models"
	"immo_scrooper/scraper"
)

// Triggerable allows workers to be triggered manually
type Triggerable interface {
	Trigger()
}

// CommandStore is the queue of operational commands.
type CommandStore interface {
	GetPendingCommands() ([]models.Command, error)
	MarkCommandProcessed(id int64) error
	ParseCommandParams(cmd *models.Command) (*models.CommandParams, error)
}

type Scheduler struct {
	cfg          *config.Config
	orchestrator *scraper.Orchestrator
	store        CommandStore
	cron         *cron.Cron
	ticker       *time.Ticker
	stopCh       chan struct{}
	pollInterval time.Duration

	notifyWorker   Triggerable
	mediaWorker    Triggerable
	backfillWorker Triggerable
}

func New(cfg *config.Config, orchestrator *scraper.Orchestrator, store CommandStore) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		orchestrator: orchestrator,
		store:        store,
		cron:         cron.New(),
		stopCh:       make(chan struct{}),
		pollInterval: 2 * time.Second,
	}
}

// SetWorkers registers background workers for manual triggering
func (s *Scheduler) SetWorkers(notify, media, backfill Triggerable) {
	s.notifyWorker = notify
	s.mediaWorker = media
	s.backfillWorker = backfill
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.store != nil {
		go s.pollCommands(ctx)
	}

	switch {
	case s.cfg.Scheduler.Cron != "":
		logging.Infof("scheduler", "starting with cron %q", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			if err := s.orchestrator.RunAll(ctx); err != nil {
				logging.Errorf("scheduler", "scheduled run: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	case s.cfg.Scheduler.Interval > 0:
		logging.Infof("scheduler", "starting with interval %s", s.cfg.Scheduler.Interval)
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					if err := s.orchestrator.RunAll(ctx); err != nil {
						logging.Errorf("scheduler", "scheduled run: %v", err)
					}
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	default:
		logging.Infof("scheduler", "no schedule configured, only responding to commands")
	}

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processCommands(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) processCommands(ctx context.Context) {
	cmds, err := s.store.GetPendingCommands()
	if err != nil {
		logging.Errorf("scheduler", "get commands: %v", err)
		return
	}

	for i := range cmds {
		cmd := &cmds[i]
		logging.Infof("scheduler", "processing command %s", cmd.Command)
		if err := s.handleCommand(ctx, cmd); err != nil {
			logging.Errorf("scheduler", "command %s: %v", cmd.Command, err)
		}
		if err := s.store.MarkCommandProcessed(cmd.ID); err != nil {
			logging.Errorf("scheduler", "mark command %d processed: %v", cmd.ID, err)
		}
	}
}

func (s *Scheduler) handleCommand(ctx context.Context, cmd *models.Command) error {
	var worker Triggerable
	switch cmd.Command {
	case models.CmdRunNotify:
		worker = s.notifyWorker
	case models.CmdRunMedia:
		worker = s.mediaWorker
	case models.CmdRunBackfill:
		worker = s.backfillWorker
	default:
		params, err := s.store.ParseCommandParams(cmd)
		if err != nil {
			return err
		}
		err = s.orchestrator.HandleCommand(ctx, cmd, params)
		if errors.Is(err, scraper.ErrSiteRunning) {
			logging.Warnf("scheduler", "%v", err)
			return nil
		}
		return err
	}

	if worker == nil {
		return fmt.Errorf("no worker registered for %s", cmd.Command)
	}
	worker.Trigger()
	logging.Infof("scheduler", "%s triggered via command", cmd.Command)
	return nil
}
