package service

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/eosnow-bet/dice/internal/engine"
	"github.com/eosnow-bet/dice/internal/types"
	"github.com/eosnow-bet/dice/pkg/infra"
)

// scheduler persists continuations in the work queue. The task id is
// the idempotency key, so a crash between commit and publish can at
// worst deliver a task once.
type scheduler struct {
	queue  infra.MessageQueue
	prefix string
}

func newScheduler(queue infra.MessageQueue, prefix string) engine.Scheduler {
	return &scheduler{queue: queue, prefix: prefix}
}

func (s *scheduler) Schedule(task types.Task, notBefore time.Time) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", task.ID, err)
	}
	subject := fmt.Sprintf("%s.%s.%s", s.prefix, taskConsumer, task.Kind)
	return s.queue.Enqueue(subject, data, &infra.EnqueueOptions{
		IdempotentKey: task.ID.String(),
		NotBefore:     notBefore,
	})
}

// localTips is the default entropy source for deployments that do not
// follow an external ledger head: a monotonic counter paired with a
// random prefix drawn per roll.
type localTips struct {
	mu sync.Mutex
	n  uint32
}

func newLocalTips() engine.TipProvider {
	return &localTips{}
}

func (t *localTips) Tip() engine.ChainTip {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.n++

	var buf [4]byte
	_, _ = rand.Read(buf[:])
	return engine.ChainTip{
		Number: t.n,
		Prefix: binary.LittleEndian.Uint32(buf[:]),
	}
}
