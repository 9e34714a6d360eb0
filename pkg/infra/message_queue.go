package infra

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/eosnow-bet/dice/pkg/common/logger"
)

const (
	// HeaderNotBefore carries the unix second before which a deferred
	// message must not be handed to the consumer.
	HeaderNotBefore = "Dice-Not-Before"

	MaxMsgSize = 10 * 1024 // 10KB
)

var ErrPermanent = errors.New("permanent messaging error")

type MessageQueue interface {
	Enqueue(topic string, message []byte, options *EnqueueOptions) error
	// handler shouldn't be a blocking call as it would trigger redelivery
	// of the message if certain period of time has passed without ack.
	Dequeue(handler func(subject string, message []byte) error) error
	Close()
}

type EnqueueOptions struct {
	IdempotentKey string
	NotBefore     time.Time
}

type msgQueue struct {
	consumerName    string
	js              jetstream.JetStream
	consumer        jetstream.Consumer
	consumerContext jetstream.ConsumeContext
}

type NATsMessageQueueManager struct {
	queueName string
	js        jetstream.JetStream
}

func NewNATsMessageQueueManager(queueName string, subjectWildCards []string, nc *nats.Conn) *NATsMessageQueueManager {
	js, err := jetstream.New(nc)
	if err != nil {
		logger.Fatal("Error creating JetStream context", "err", err)
	}

	ctx := context.Background()
	stream, err := js.Stream(ctx, queueName)
	if err != nil {
		logger.Warn("Stream not found, creating new stream", "stream", queueName)
	}
	if stream != nil {
		info, _ := stream.Info(ctx)
		logger.Info("Stream found", "name", info.Config.Name, "subjects", info.Config.Subjects, "state", info.State.Msgs)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        queueName,
		Description: "Stream for " + queueName,
		Subjects:    subjectWildCards,
		MaxMsgSize:  int32(MaxMsgSize),
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.WorkQueuePolicy,
		Duplicates:  10 * time.Minute,
		MaxAge:      2 * 24 * time.Hour, // 2 days
	})
	if err != nil {
		logger.Fatal("Error creating JetStream stream", "err", err)
	}

	return &NATsMessageQueueManager{
		queueName: queueName,
		js:        js,
	}
}

func (m *NATsMessageQueueManager) NewMessageQueue(consumerName string) MessageQueue {
	mq := &msgQueue{
		consumerName: consumerName,
		js:           m.js,
	}
	consumerWildCard := fmt.Sprintf("%s.%s.*", m.queueName, consumerName)
	cfg := jetstream.ConsumerConfig{
		Name:    consumerName,
		Durable: consumerName,
		// the engine serializes invocations anyway
		MaxAckPending: 1,
		FilterSubjects: []string{
			consumerWildCard,
		},
		MaxDeliver: 3,
	}
	logger.Info("Creating consumer for subject", "name", cfg.Name, "durable", cfg.Durable, "filterSubjects", cfg.FilterSubjects)
	consumer, err := m.js.CreateOrUpdateConsumer(context.Background(), m.queueName, cfg)
	if err != nil {
		logger.Fatal("Error creating JetStream consumer", "err", err)
	}

	mq.consumer = consumer
	return mq
}

func (mq *msgQueue) Enqueue(topic string, message []byte, options *EnqueueOptions) error {
	header := nats.Header{}
	if options != nil {
		if options.IdempotentKey != "" {
			header.Add("Nats-Msg-Id", options.IdempotentKey)
		}
		if !options.NotBefore.IsZero() {
			header.Add(HeaderNotBefore, strconv.FormatInt(options.NotBefore.Unix(), 10))
		}
	}

	_, err := mq.js.PublishMsg(context.Background(), &nats.Msg{
		Subject: topic,
		Data:    message,
		Header:  header,
	})
	if err != nil {
		return fmt.Errorf("error enqueueing message: %w", err)
	}
	return nil
}

func (mq *msgQueue) Dequeue(handler func(subject string, message []byte) error) error {
	c, err := mq.consumer.Consume(func(msg jetstream.Msg) {
		if delay := notBeforeDelay(msg.Headers()); delay > 0 {
			// deferred message delivered early, push it back
			_ = msg.NakWithDelay(delay)
			return
		}

		err := handler(msg.Subject(), msg.Data())
		if err != nil {
			if errors.Is(err, ErrPermanent) {
				meta, _ := msg.Metadata()
				logger.Info("Permanent error on message", "meta", meta)
				_ = msg.Term()
				return
			}

			logger.Error("error handling message", "err", err)
			_ = msg.Nak()
			return
		}

		if err := msg.Ack(); err != nil {
			logger.Error("Error acknowledging message", "err", err)
		}
	})
	mq.consumerContext = c
	return err
}

func (mq *msgQueue) Close() {
	if mq.consumerContext != nil {
		mq.consumerContext.Stop()
	}
}

func notBeforeDelay(header nats.Header) time.Duration {
	raw := header.Get(HeaderNotBefore)
	if raw == "" {
		return 0
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return time.Until(time.Unix(sec, 0))
}
