package worker

import (
	"context"

	"order-core/internal/broker"
	"order-core/internal/util"

	"go.uber.org/zap"
)

// Worker runs one Kafka consumer loop against one queue.
type Worker struct {
	name     string
	consumer *broker.Consumer
	handler  broker.MessageHandler
	logger   *zap.Logger
}

// New creates a worker for a queue
func New(name string, consumer *broker.Consumer, handler broker.MessageHandler) *Worker {
	return &Worker{
		name:     name,
		consumer: consumer,
		handler:  handler,
		logger:   util.GetLogger(),
	}
}

// Start starts the worker
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker", zap.String("worker", w.name))
	return w.consumer.StartConsuming(ctx, w.handler)
}

// Stop stops the worker
func (w *Worker) Stop() error {
	w.logger.Info("Stopping worker", zap.String("worker", w.name))
	return w.consumer.Close()
}
