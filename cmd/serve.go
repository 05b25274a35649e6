package cmd

import (
	"fmt"
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"agrimarket/config"
	"agrimarket/database"
	"agrimarket/events"
	"agrimarket/routes"
	"agrimarket/ws"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// newRouter builds the gin engine with CORS from config
func newRouter() *gin.Engine {
	if !config.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", "Retry-After"},
	}
	origins := config.AppConfig.CORSOrigins
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
		corsCfg.AllowCredentials = true
	}
	r.Use(cors.New(corsCfg))
	r.MaxMultipartMemory = config.AppConfig.UploadMaxBytes
	return r
}

func runServer(cmd *cobra.Command, args []string) error {
	log.Println("🚀 Agrimarket API starting...")

	if err := database.InitDB(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.CloseDB()

	if err := database.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	events.Default.Register("ws", ws.H)
	if config.AppConfig.AMQPURL != "" {
		pub, err := events.NewAMQPPublisher(config.AppConfig.AMQPURL, config.AppConfig.EventsQueue)
		if err != nil {
			log.Printf("⚠️ RabbitMQ unavailable, events stay in-process: %v", err)
		} else {
			defer pub.Close()
			events.Default.Register("amqp", pub)
			log.Printf("✅ Publishing events to queue %s", config.AppConfig.EventsQueue)
		}
	}

	rdb := config.NewRedisClient(config.AppConfig.Redis)
	if rdb != nil {
		defer rdb.Close()
	} else if config.AppConfig.RateLimit.Enabled {
		log.Println("⚠️ Redis unavailable, auth rate limiting disabled")
	}

	r := newRouter()
	routes.SetupRoutes(r, rdb)

	addr := "0.0.0.0:" + config.AppConfig.Port
	log.Printf("🚀 Server running at http://%s", addr)
	if err := r.Run(addr); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
