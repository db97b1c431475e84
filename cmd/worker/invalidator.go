package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmehdipour/restaurant-crm/internal/app"
	"github.com/jmehdipour/restaurant-crm/internal/config"
	"github.com/jmehdipour/restaurant-crm/internal/kafka"
	"github.com/jmehdipour/restaurant-crm/internal/logger"
	"github.com/jmehdipour/restaurant-crm/internal/metrics"
	"github.com/jmehdipour/restaurant-crm/internal/worker"
)

var invalidatorCmd = &cobra.Command{
	Use:   "cache-invalidator",
	Short: "Evict cached tenants when another instance changes them",
	RunE:  runInvalidator,
}

func runInvalidator(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.Kafka.Enabled() || cfg.Kafka.TenantTopic == "" {
		return errors.New("cache-invalidator needs kafka.brokers and kafka.tenant_topic")
	}
	if cfg.Redis.Addr == "" {
		logger.Log.Warn("redis is not configured; evictions only affect this process")
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	consumer := kafka.NewConsumer(kafka.Config{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          cfg.Kafka.TenantTopic,
		GroupID:        cfg.Kafka.GroupID,
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
	})
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Log.Info("cache invalidator started",
		zap.String("topic", cfg.Kafka.TenantTopic), zap.String("group", cfg.Kafka.GroupID))
	return worker.NewCacheInvalidator(consumer, a.Tenants).Run(ctx)
}
