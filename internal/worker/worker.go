package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	kafka_impl "listing-images/internal/broker/kafka"
	"listing-images/internal/config"
	"listing-images/internal/domain"
	"listing-images/internal/pipeline"
	minio_repo "listing-images/internal/repository/asset/cloud/minio"
	postgres_repo "listing-images/internal/repository/asset/db/postgres"
	listing_repo "listing-images/internal/repository/listing"
	asset_uc "listing-images/internal/usecase/asset"

	"github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"
)

// Worker consumes rendition rebuild tasks and regenerates the missing
// renditions from the stored source image.
type Worker struct {
	cfg         *config.Config
	logger      *zlog.Zerolog
	db          *dbpg.DB
	consumer    *kafka_impl.ConsumerClient
	producer    *kafka_impl.ProducerClient
	usecase     *asset_uc.AssetUsecase
	concurrency int
	wg          sync.WaitGroup
	cancel      context.CancelFunc
}

func NewWorker(cfg *config.Config, logger *zlog.Zerolog) (*Worker, error) {
	retries := cfg.DefaultRetryStrategy()
	dbOpts := &dbpg.Options{
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	}
	db, err := dbpg.New(cfg.DBDSN(), []string{}, dbOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	fileRepo, err := minio_repo.NewFileRepository(cfg, retries, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file repository: %w", err)
	}

	assetRepo := postgres_repo.NewAssetsRepository(db, retries)
	listingRepo := listing_repo.NewListingsRepository(db, retries)
	consumer := kafka_impl.NewConsumerClient(cfg)
	producer := kafka_impl.NewProducerClient(cfg)
	builder := pipeline.NewBuilder(cfg, logger)
	usecase := asset_uc.NewAssetUsecase(assetRepo, listingRepo, fileRepo, producer, builder, cfg, logger)

	concurrency := cfg.Worker.Concurrency
	logger.Info().
		Strs("brokers", cfg.Kafka.Brokers).
		Str("topic", cfg.Kafka.RebuildTopic).
		Str("group", cfg.Kafka.GroupID).
		Int("concurrency", concurrency).
		Msg("Worker configuration")

	return &Worker{
		cfg:         cfg,
		logger:      logger,
		db:          db,
		consumer:    consumer,
		producer:    producer,
		usecase:     usecase,
		concurrency: concurrency,
	}, nil
}

func (w *Worker) Run() error {
	w.logger.Info().Int("concurrency", w.concurrency).Msg("Starting worker")

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		w.logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal, stopping worker...")
		cancel()
	}()

	messages := make(chan kafka.Message, w.concurrency*2)
	w.consumer.StartConsuming(ctx, messages, w.cfg.DefaultRetryStrategy())

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go func(id int) {
			defer w.wg.Done()
			w.processLoop(ctx, id, messages)
		}(i)
	}

	w.logger.Info().Msg("Worker started successfully")
	<-ctx.Done()

	w.logger.Info().Msg("Shutting down worker gracefully...")
	w.wg.Wait()

	if w.db != nil && w.db.Master != nil {
		w.db.Master.Close()
	}
	if w.consumer != nil {
		w.consumer.Close()
	}
	if w.producer != nil {
		w.producer.Close()
	}

	w.logger.Info().Msg("Worker stopped gracefully")
	return nil
}

func (w *Worker) processLoop(ctx context.Context, id int, messages <-chan kafka.Message) {
	w.logger.Info().Int("worker_id", id).Msg("Worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug().Int("worker_id", id).Msg("Worker stopping")
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			start := time.Now()
			if err := w.safeProcessMessage(ctx, id, msg); err != nil {
				w.logger.Error().
					Err(err).
					Int("worker_id", id).
					Int64("offset", msg.Offset).
					Msg("Failed to process message")
				continue
			}
			if err := w.consumer.Commit(ctx, msg); err != nil {
				w.logger.Error().
					Err(err).
					Int("worker_id", id).
					Int64("offset", msg.Offset).
					Msg("Failed to commit message after successful processing")
				continue
			}
			w.logger.Debug().
				Int("worker_id", id).
				Int64("offset", msg.Offset).
				Dur("duration", time.Since(start)).
				Msg("Message processed and committed")
		}
	}
}

func (w *Worker) safeProcessMessage(ctx context.Context, workerID int, msg kafka.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().
				Int("worker_id", workerID).
				Interface("panic", r).
				Int64("offset", msg.Offset).
				Msg("Panic recovered while processing message")
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.processMessage(ctx, msg)
}

func (w *Worker) processMessage(ctx context.Context, msg kafka.Message) error {
	var task domain.RebuildTask
	if err := json.Unmarshal(msg.Value, &task); err != nil {
		w.logger.Error().Err(err).Str("message", string(msg.Value)).Int64("offset", msg.Offset).Msg("Failed to unmarshal task")
		return fmt.Errorf("failed to unmarshal task: %w", err)
	}

	w.logger.Info().
		Str("task_id", task.ID).
		Str("image_id", task.AssetID).
		Strs("renditions", task.Renditions).
		Int64("offset", msg.Offset).
		Msg("Rebuild task started")

	if err := w.usecase.RebuildRenditions(ctx, &task); err != nil {
		return fmt.Errorf("rebuild failed for image %s: %w", task.AssetID, err)
	}

	w.logger.Info().
		Str("task_id", task.ID).
		Str("image_id", task.AssetID).
		Msg("Rebuild task completed")
	return nil
}
