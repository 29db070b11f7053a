package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"procodus.dev/telemetry-store/internal/producer"
	"procodus.dev/telemetry-store/pkg/metrics"
)

var generatorCmd = &cobra.Command{
	Use:   "generator",
	Short: "Run the data generator",
	Long: `Run the data generator that:
- Generates synthetic telemetry submissions
- Publishes submissions to RabbitMQ
- Supports multiple concurrent producers`,
	RunE: runGenerator,
}

func init() {
	rootCmd.AddCommand(generatorCmd)

	// Generator-specific flags
	generatorCmd.Flags().String("rabbitmq-url", "amqp://localhost:5672", "RabbitMQ URL")
	generatorCmd.Flags().String("queue-name", "telemetry-submissions", "RabbitMQ queue name for submissions")
	generatorCmd.Flags().Duration("interval", 30*time.Second, "time between generated submissions")
	generatorCmd.Flags().Int("producer-count", 1, "number of concurrent producers")

	// Bind flags to viper
	_ = viper.BindPFlag("generator.rabbitmq.url", generatorCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("generator.rabbitmq.queue_name", generatorCmd.Flags().Lookup("queue-name"))
	_ = viper.BindPFlag("generator.interval", generatorCmd.Flags().Lookup("interval"))
	_ = viper.BindPFlag("generator.producer_count", generatorCmd.Flags().Lookup("producer-count"))
}

func runGenerator(_ *cobra.Command, _ []string) error {
	logger := GetLogger("generator")
	logger.Info("starting generator service")

	// Create generator configuration from viper
	config := &producer.ServerConfig{
		Logger:        logger,
		RabbitMQURL:   viper.GetString("generator.rabbitmq.url"),
		QueueName:     viper.GetString("generator.rabbitmq.queue_name"),
		Interval:      viper.GetDuration("generator.interval"),
		ProducerCount: viper.GetInt("generator.producer_count"),
		Metrics:       metrics.NewProducerMetrics("telemetry_store"),
		MQMetrics:     metrics.NewMQMetrics("telemetry_store"),
	}

	server, err := producer.NewServer(config)
	if err != nil {
		logger.Error("failed to create producer server", "error", err)
		return err
	}

	logger.Info("generator configuration",
		"rabbitmq_url", config.RabbitMQURL,
		"queue", config.QueueName,
		"interval", config.Interval,
		"producer_count", config.ProducerCount,
	)

	if err := server.Run(context.Background()); err != nil {
		logger.Error("producer server error", "error", err)
		return err
	}

	logger.Info("producer server stopped")
	return nil
}
