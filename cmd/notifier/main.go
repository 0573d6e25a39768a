package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/eventhall/ticketing/internal/adapters/rabbit"
	"github.com/eventhall/ticketing/internal/config"
	"github.com/eventhall/ticketing/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
)

// The notifier drains booking lifecycle events from the broker and hands
// them to the delivery channel (currently the log; email/push transports
// plug in here).
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()

	consumer, err := rabbit.NewConsumer(conn, "notifications.q")
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		log.Fatalf("failed to consume: %v", err)
	}

	go func() {
		for d := range deliveries {
			handle(logger, d)
		}
	}()
	logger.Info("Notifier started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown notifier")
}

func handle(logger observability.Logger, d amqp.Delivery) {
	var payload map[string]interface{}
	if err := json.Unmarshal(d.Body, &payload); err != nil {
		logger.WithError(err).Error("malformed notification payload")
		d.Nack(false, false)
		return
	}
	logger.WithField("routing_key", d.RoutingKey).WithField("message_id", d.MessageId).Info("notification dispatched")
	d.Ack(false)
}
