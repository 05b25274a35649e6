package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"agrimarket/config"
	"agrimarket/events"
)

var activityLogPath string

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume domain events into the activity store",
	Long: `Consume the events queue and record every event in MongoDB when
MONGODB_URI is set, or append them to a log file otherwise.`,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().StringVar(&activityLogPath, "log-file", filepath.Join("logs", "activity.log"), "activity log used when MongoDB is not configured")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	if config.AppConfig.AMQPURL == "" {
		return fmt.Errorf("AMQP_URL is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sink events.Publisher
	if config.AppConfig.MongoURI != "" {
		store, err := events.NewMongoActivityStore(ctx, config.AppConfig.MongoURI, config.AppConfig.MongoDatabase)
		if err != nil {
			return fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = store.Close(closeCtx)
		}()
		sink = store
		log.Printf("✅ Recording activity in MongoDB database %s", config.AppConfig.MongoDatabase)
	} else {
		fileLog, err := events.NewFileActivityLog(activityLogPath)
		if err != nil {
			return fmt.Errorf("failed to open activity log: %w", err)
		}
		sink = fileLog
		log.Printf("✅ Recording activity in %s", activityLogPath)
	}

	log.Printf("🐇 Consuming queue %s", config.AppConfig.EventsQueue)
	err := events.Consume(ctx, config.AppConfig.AMQPURL, config.AppConfig.EventsQueue, sink)
	if err != nil && ctx.Err() == nil {
		return err
	}
	log.Println("👋 Worker stopped")
	return nil
}
