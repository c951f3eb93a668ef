package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"listing-images/internal/config"
	"listing-images/internal/domain"

	wbkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
)

type ProducerClient struct {
	producer *wbkafka.Producer
	retries  retry.Strategy
}

func NewProducerClient(cfg *config.Config) *ProducerClient {
	return &ProducerClient{
		producer: wbkafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.RebuildTopic),
		retries:  cfg.DefaultRetryStrategy(),
	}
}

// SendTask enqueues a rendition rebuild task, keyed by asset id so retries for
// one asset stay ordered.
func (p *ProducerClient) SendTask(ctx context.Context, task *domain.RebuildTask) error {
	value, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal rebuild task: %w", err)
	}
	return p.producer.SendWithRetry(ctx, p.retries, []byte(task.AssetID), value)
}

func (p *ProducerClient) Close() error {
	return p.producer.Close()
}
