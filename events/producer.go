package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
)

// Publisher emits one event per stage transition for downstream consumers
// (audit trails, dashboards). The pipeline never depends on delivery.
type Publisher interface {
	PublishStageEvent(ctx context.Context, event *StageEvent) error
	Close() error
}

type StageEvent struct {
	TaskID    string    `json:"task_id"`
	TraceID   string    `json:"trace_id"`
	Status    string    `json:"status"`
	Stage     string    `json:"stage"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type producer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewProducer(brokers []string, topic string) (Publisher, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	p, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return &producer{producer: p, topic: topic}, nil
}

func (p *producer) PublishStageEvent(ctx context.Context, event *StageEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.TaskID),
		Value: sarama.ByteEncoder(data),
	}

	_, _, err = p.producer.SendMessage(msg)
	return err
}

func (p *producer) Close() error {
	return p.producer.Close()
}
