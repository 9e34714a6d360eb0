package types

import (
	"encoding/json"
	"fmt"

	"github.com/eosnow-bet/dice/pkg/asset"
)

type TaskKind uint8

const (
	TaskBet        TaskKind = 1
	TaskResolve    TaskKind = 2
	TaskMint       TaskKind = 3
	TaskDistribute TaskKind = 4
	TaskNotify     TaskKind = 5
)

func (k TaskKind) String() string {
	switch k {
	case TaskBet:
		return "bet"
	case TaskResolve:
		return "resolved"
	case TaskMint:
		return "mint"
	case TaskDistribute:
		return "distribute"
	case TaskNotify:
		return "notify"
	default:
		return fmt.Sprintf("task(%d)", uint8(k))
	}
}

// TaskID is a monotonic sequence number tagged with the task kind, so
// ids are distinct across kinds and retries of one task reuse one id.
type TaskID struct {
	Kind TaskKind `json:"kind"`
	Seq  uint64   `json:"seq"`
}

func (id TaskID) String() string {
	return fmt.Sprintf("%d:%d", uint8(id.Kind), id.Seq)
}

// Task is a scheduled continuation: registered now, executed as an
// independent later invocation.
type Task struct {
	ID      TaskID          `json:"id"`
	Kind    TaskKind        `json:"task_kind"`
	Payload json.RawMessage `json:"payload"`
}

func NewTask(id TaskID, payload any) (Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Task{}, fmt.Errorf("encode %s task payload: %w", id.Kind, err)
	}
	return Task{ID: id, Kind: id.Kind, Payload: data}, nil
}

// WagerTask is the payload of both the bet and the resolved
// continuations.
type WagerTask struct {
	BetID      uint64      `json:"bet_id,omitempty"` // set once the wager is booked
	Player     string      `json:"player"`
	Inviter    string      `json:"inviter"`
	Quantity   asset.Asset `json:"quantity"`
	RollType   RollType    `json:"roll_type"`
	RollBorder uint64      `json:"roll_border"`
}

type MintTask struct {
	Issuer   string      `json:"issuer"`
	Quantity asset.Asset `json:"quantity"`
	Player   string      `json:"player"`
	Inviter  string      `json:"inviter"`
}

type DistributeTask struct {
	Caller  string      `json:"caller"`
	Board   BoardType   `json:"board"`
	Leaders []string    `json:"leaders"`
	Bonus   asset.Asset `json:"bonus"`
}

type NotifyTask struct {
	Message string `json:"message"`
}
