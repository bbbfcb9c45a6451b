package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/numgate/numgate/internal/config"
	"github.com/numgate/numgate/internal/db"
	"github.com/numgate/numgate/internal/kafka"
	"github.com/numgate/numgate/internal/logger"
	"github.com/numgate/numgate/internal/metrics"
	"github.com/numgate/numgate/internal/repository"
	"github.com/numgate/numgate/internal/worker"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Drain rental lifecycle events from Kafka into ClickHouse",
	RunE:  runEvents,
}

func runEvents(cmd *cobra.Command, args []string) error {
	// 1) load config
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	// 2) ClickHouse connection (reporting sink)
	chDB, err := db.NewClickHouseConnection(db.ClickHouseOpts{
		DSN:             cfg.ClickHouse.DSN,
		MaxOpenConns:    cfg.ClickHouse.MaxOpenConns,
		MaxIdleConns:    cfg.ClickHouse.MaxIdleConns,
		ConnMaxLifetime: cfg.ClickHouse.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ClickHouse.ConnMaxIdleTime,
		PingTimeout:     cfg.ClickHouse.PingTimeout,
	})
	if err != nil {
		return fmt.Errorf("clickhouse connect: %w", err)
	}
	defer chDB.Close()

	eventsRepo := repository.NewEventsRepository(chDB)

	// 3) kafka consumer
	topic := cfg.Kafka.Topic
	if topic == "" {
		topic = "rental.events"
	}
	groupID := cfg.Kafka.GroupID
	if groupID == "" {
		groupID = "numgate-events"
	}

	consumer := kafka.NewConsumerFromConfig(kafka.Config{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
	})
	defer consumer.Close()

	sink := worker.NewEventSink(consumer, eventsRepo)

	// 4) graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf(">> events sink started topic=%s group=%s batchSize=%d batchWait=%s",
		topic, groupID, sink.BatchSize, sink.BatchWait)

	return sink.Run(ctx)
}
