package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"procodus.dev/telemetry-store/internal/api"
	"procodus.dev/telemetry-store/pkg/metrics"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the record store server",
	Long: `Run the record store server that:
- Accepts telemetry submissions over HTTP
- Optionally consumes submissions from RabbitMQ
- Persists records to an embedded SQLite database
- Serves the record query API`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// Server-specific flags
	serverCmd.Flags().String("storage-dir", "./var/telemetry", "storage directory for the embedded database")
	serverCmd.Flags().String("api-key", "telemetry-dev-key", "shared-secret API key expected on every request")
	serverCmd.Flags().Int("http-port", 2612, "HTTP server port")
	serverCmd.Flags().String("rabbitmq-url", "", "RabbitMQ URL (leave empty to disable queue ingestion)")
	serverCmd.Flags().String("queue-name", "telemetry-submissions", "RabbitMQ queue name for submissions")

	// Bind flags to viper
	_ = viper.BindPFlag("server.storage_dir", serverCmd.Flags().Lookup("storage-dir"))
	_ = viper.BindPFlag("server.api_key", serverCmd.Flags().Lookup("api-key"))
	_ = viper.BindPFlag("server.http.port", serverCmd.Flags().Lookup("http-port"))
	_ = viper.BindPFlag("server.rabbitmq.url", serverCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("server.rabbitmq.queue_name", serverCmd.Flags().Lookup("queue-name"))
}

func runServer(_ *cobra.Command, _ []string) error {
	logger := GetLogger("record-store")
	logger.Info("starting record store service")

	// Create server configuration from viper
	config := &api.ServerConfig{
		Logger:      logger,
		StorageDir:  viper.GetString("server.storage_dir"),
		APIKey:      viper.GetString("server.api_key"),
		HTTPPort:    viper.GetInt("server.http.port"),
		RabbitMQURL: viper.GetString("server.rabbitmq.url"),
		QueueName:   viper.GetString("server.rabbitmq.queue_name"),
		Metrics:     metrics.NewServerMetrics("telemetry_store"),
		MQMetrics:   metrics.NewMQMetrics("telemetry_store"),
	}

	server, err := api.NewServer(config)
	if err != nil {
		logger.Error("failed to create record store server", "error", err)
		return err
	}

	logger.Info("record store server configuration",
		"storage_dir", config.StorageDir,
		"http_port", config.HTTPPort,
		"rabbitmq_url", config.RabbitMQURL,
		"queue", config.QueueName,
	)

	if err := server.Run(context.Background()); err != nil {
		logger.Error("record store server error", "error", err)
		return err
	}

	logger.Info("record store server stopped")
	return nil
}
