// Package service wires the engine to the outside world: a JetStream
// work queue carries the deferred continuations back into the engine,
// a second consumer feeds inbound token transfers, and the emitter
// publishes the engine's outward effects for external consumers.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/eosnow-bet/dice/internal/config"
	"github.com/eosnow-bet/dice/internal/engine"
	"github.com/eosnow-bet/dice/internal/gamestore"
	"github.com/eosnow-bet/dice/internal/types"
	"github.com/eosnow-bet/dice/pkg/common/logger"
	"github.com/eosnow-bet/dice/pkg/events"
	"github.com/eosnow-bet/dice/pkg/infra"
	"github.com/eosnow-bet/dice/pkg/kvstore"
)

const (
	taskConsumer     = "tasks"
	transferConsumer = "transfers"
	eventsSegment    = "events"
)

type Service struct {
	cfg    *config.Config
	nc     *nats.Conn
	store  *gamestore.Store
	engine *engine.Engine

	taskQueue     infra.MessageQueue
	transferQueue infra.MessageQueue
	emitter       events.Emitter
}

func New(cfg *config.Config) (*Service, error) {
	nc, err := infra.GetNATSConnection(cfg.NATS.URL)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	prefix := cfg.NATS.SubjectPrefix
	manager := infra.NewNATsMessageQueueManager(prefix, []string{prefix + ".>"}, nc)
	taskQueue := manager.NewMessageQueue(taskConsumer)
	transferQueue := manager.NewMessageQueue(transferConsumer)

	kv, err := kvstore.New(kvstore.Options{
		Type:      kvstore.StoreType(cfg.Store.Type),
		Directory: cfg.Store.Directory,
		Prefix:    cfg.Store.Prefix,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	store := gamestore.New(kv)
	emitter := events.NewEmitter(taskQueue, fmt.Sprintf("%s.%s", prefix, eventsSegment))

	eng := engine.New(engine.Deps{
		Store:     store,
		Scheduler: newScheduler(taskQueue, prefix),
		Emitter:   emitter,
		Tips:      newLocalTips(),
		Game:      cfg.Game,
		Logger:    logger.L(),
	})

	return &Service{
		cfg:           cfg,
		nc:            nc,
		store:         store,
		engine:        eng,
		taskQueue:     taskQueue,
		transferQueue: transferQueue,
		emitter:       emitter,
	}, nil
}

// Engine exposes the engine for administrative tooling.
func (s *Service) Engine() *engine.Engine {
	return s.engine
}

// Start bootstraps the game state and blocks consuming tasks and
// transfers until the context is cancelled.
func (s *Service) Start(ctx context.Context) error {
	if err := s.engine.Init(); err != nil {
		return fmt.Errorf("bootstrap game state: %w", err)
	}
	if err := s.taskQueue.Dequeue(s.handleTask); err != nil {
		return fmt.Errorf("consume tasks: %w", err)
	}
	if err := s.transferQueue.Dequeue(s.handleTransfer); err != nil {
		return fmt.Errorf("consume transfers: %w", err)
	}
	logger.Info("dice service started",
		"subject_prefix", s.cfg.NATS.SubjectPrefix,
		"store", s.cfg.Store.Type)

	<-ctx.Done()
	return nil
}

func (s *Service) Stop() {
	s.taskQueue.Close()
	s.transferQueue.Close()
	if err := s.store.Close(); err != nil {
		logger.Error("close store", "err", err)
	}
	if err := s.nc.Drain(); err != nil {
		logger.Error("drain nats", "err", err)
	}
}

func (s *Service) handleTask(subject string, message []byte) error {
	var task types.Task
	if err := json.Unmarshal(message, &task); err != nil {
		logger.Error("undecodable task dropped", "subject", subject, "err", err)
		return fmt.Errorf("%w: %v", infra.ErrPermanent, err)
	}

	err := s.engine.HandleTask(task)
	if err == nil {
		return nil
	}
	if isPermanent(err) {
		logger.Warn("task abandoned", "task", task.ID, "err", err)
		if ferr := s.engine.OnTaskFailure(task, err); ferr != nil {
			logger.Error("record task failure", "task", task.ID, "err", ferr)
		}
		return fmt.Errorf("%w: %v", infra.ErrPermanent, err)
	}
	return err
}

func (s *Service) handleTransfer(subject string, message []byte) error {
	var tr types.TokenTransfer
	if err := json.Unmarshal(message, &tr); err != nil {
		logger.Error("undecodable transfer dropped", "subject", subject, "err", err)
		return fmt.Errorf("%w: %v", infra.ErrPermanent, err)
	}

	err := s.engine.OnTransfer(tr)
	if err == nil {
		return nil
	}
	if isPermanent(err) {
		// rejected wagers are not retried; the deposit never entered
		// the pool, so there is nothing to compensate
		logger.Warn("transfer rejected", "from", tr.From, "memo", tr.Memo, "err", err)
		return fmt.Errorf("%w: %v", infra.ErrPermanent, err)
	}
	return err
}

// isPermanent reports whether retrying an invocation can never
// succeed.
func isPermanent(err error) bool {
	return errors.Is(err, engine.ErrInvalidBet) ||
		errors.Is(err, engine.ErrBetTooLarge) ||
		errors.Is(err, engine.ErrPoolDrained) ||
		errors.Is(err, engine.ErrUnknownBet) ||
		errors.Is(err, engine.ErrUnknownTask) ||
		errors.Is(err, engine.ErrUnauthorized) ||
		errors.Is(err, engine.ErrBadMemo)
}
