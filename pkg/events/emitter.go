// Package events publishes the engine's outward effects: value
// transfers, secondary-token mint requests and admin notices. Every
// event is a JSON message on the queue; consumers (token service,
// monitoring) live outside this module.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/eosnow-bet/dice/pkg/asset"
	"github.com/eosnow-bet/dice/pkg/infra"
)

const (
	TransferTopic = "transfer"
	MintTopic     = "mint"
	NoticeTopic   = "notice"
)

type TransferEvent struct {
	From      string      `json:"from"`
	To        string      `json:"to"`
	Quantity  asset.Asset `json:"quantity"`
	Memo      string      `json:"memo"`
	Timestamp int64       `json:"timestamp"`
}

type MintEvent struct {
	Issuer    string      `json:"issuer"`
	Quantity  asset.Asset `json:"quantity"`
	Player    string      `json:"player"`
	Inviter   string      `json:"inviter"`
	Timestamp int64       `json:"timestamp"`
}

type NoticeEvent struct {
	Message    string   `json:"message"`
	Recipients []string `json:"recipients"`
	Timestamp  int64    `json:"timestamp"`
}

type Emitter interface {
	EmitTransfer(from, to string, quantity asset.Asset, memo string) error
	EmitMint(issuer string, quantity asset.Asset, player, inviter string) error
	EmitNotice(message string, recipients ...string) error
	Close()
}

type emitter struct {
	queue         infra.MessageQueue
	subjectPrefix string
}

func NewEmitter(queue infra.MessageQueue, subjectPrefix string) Emitter {
	return &emitter{
		queue:         queue,
		subjectPrefix: subjectPrefix,
	}
}

func (e *emitter) EmitTransfer(from, to string, quantity asset.Asset, memo string) error {
	return e.emit(TransferTopic, TransferEvent{
		From:      from,
		To:        to,
		Quantity:  quantity,
		Memo:      memo,
		Timestamp: time.Now().UTC().Unix(),
	})
}

func (e *emitter) EmitMint(issuer string, quantity asset.Asset, player, inviter string) error {
	return e.emit(MintTopic, MintEvent{
		Issuer:    issuer,
		Quantity:  quantity,
		Player:    player,
		Inviter:   inviter,
		Timestamp: time.Now().UTC().Unix(),
	})
}

func (e *emitter) EmitNotice(message string, recipients ...string) error {
	return e.emit(NoticeTopic, NoticeEvent{
		Message:    message,
		Recipients: recipients,
		Timestamp:  time.Now().UTC().Unix(),
	})
}

func (e *emitter) emit(topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("%s.%s", e.subjectPrefix, topic)
	return e.queue.Enqueue(subject, data, nil)
}

func (e *emitter) Close() {
	if e.queue != nil {
		e.queue.Close()
	}
}
