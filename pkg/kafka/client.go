// Package kafka 把控制台工作流事件投递到 Kafka，供下游审计或统计系统消费。
package kafka

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"hospital-console-go/internal/config"
	"hospital-console-go/internal/event"
	"hospital-console-go/pkg/log"
)

// messageWriter 是 *kafka.Writer 中被 EventSink 使用的部分。
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventSink 订阅事件总线并把每个事件写成一条 Kafka 消息，key 为会话 ID。
type EventSink struct {
	writer       messageWriter
	writeTimeout time.Duration
}

// NewEventSink 初始化 Kafka 生产者。
func NewEventSink(cfg config.KafkaConfig) *EventSink {
	var brokers []string
	for _, b := range strings.Split(cfg.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
	}
	log.Infof("Kafka 生产者初始化成功, topic=%s", cfg.Topic)
	return &EventSink{writer: w, writeTimeout: 5 * time.Second}
}

// Run 从通道读取事件直到通道关闭或 ctx 结束。写入失败只记录日志，不回压工作流。
func (s *EventSink) Run(ctx context.Context, events <-chan event.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := s.write(ctx, e); err != nil {
				log.Warnf("投递事件到 Kafka 失败: type=%s, err=%v", e.Type, err)
			}
		}
	}
}

func (s *EventSink) write(ctx context.Context, e event.Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()
	return s.writer.WriteMessages(wctx, kafka.Message{
		Key:   []byte(e.SessionID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
		Time: e.At,
	})
}

// Close 刷新并关闭生产者。
func (s *EventSink) Close() error {
	return s.writer.Close()
}
