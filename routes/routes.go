package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"agrimarket/config"
	"agrimarket/controllers"
	"agrimarket/middleware"
	"agrimarket/ws"
)

// SetupRoutes configures all application routes. rdb may be nil, in which
// case the auth routes are not rate limited.
func SetupRoutes(r *gin.Engine, rdb *redis.Client) {
	r.Static("/uploads", config.AppConfig.UploadDir)

	// Public routes (no authentication required)
	public := r.Group("/api")
	{
		public.GET("/health", controllers.HealthCheck)

		auth := public.Group("/auth")
		auth.Use(middleware.RateLimit(config.AppConfig.RateLimit, rdb))
		{
			auth.POST("/login", controllers.Login)
			auth.POST("/register", controllers.Register)
		}

		public.GET("/statistics", controllers.GetStatistics)

		// the token authenticates the websocket handshake itself
		public.GET("/ws", ws.HandleUserWebSocket)
	}

	// Catalogue: anonymous callers see the listings of accepted farmers,
	// farmers additionally see their own
	catalogue := r.Group("/api")
	catalogue.Use(middleware.OptionalAuthMiddleware())
	{
		catalogue.GET("/products", controllers.GetProducts)
		catalogue.GET("/products/:id", controllers.GetProductByID)
	}

	// Protected routes (authentication required)
	protected := r.Group("/api")
	protected.Use(middleware.AuthMiddleware())
	{
		protected.POST("/auth/refresh", controllers.RefreshToken)

		protected.GET("/profile", controllers.GetUserProfile)
		protected.PUT("/profile", controllers.UpdateUserProfile)
		protected.POST("/profile/change-password", controllers.ChangePassword)

		protected.GET("/users", controllers.GetUsers)
		protected.GET("/users/:id", controllers.GetUserByID)
		protected.GET("/vets", controllers.GetVets)

		// Products
		products := protected.Group("/products")
		{
			products.POST("", middleware.FarmerAuthMiddleware(), controllers.CreateProduct)
			products.PUT("/:id", controllers.UpdateProduct)
			products.PATCH("/:id/status", controllers.UpdateProductStatus)
			products.DELETE("/:id", controllers.DeleteProduct)
		}

		// Consultations
		consultations := protected.Group("/consultations")
		{
			consultations.GET("", controllers.GetConsultations)
			consultations.GET("/:id", controllers.GetConsultationByID)
			consultations.POST("", middleware.FarmerAuthMiddleware(), controllers.CreateConsultation)
			consultations.PUT("/:id/response", middleware.VetAuthMiddleware(), controllers.SubmitConsultationResponse)
			consultations.PUT("/:id", controllers.UpdateConsultation)
			consultations.DELETE("/:id", controllers.DeleteConsultation)
		}

		// Messages
		messages := protected.Group("/messages")
		{
			messages.GET("", controllers.GetMessages)
			messages.GET("/:id", controllers.GetMessageByID)
			messages.POST("", controllers.CreateMessage)
			messages.PUT("/:id/read", controllers.MarkMessageRead)
			messages.DELETE("/:id", controllers.DeleteMessage)
		}

		// Reclamations
		reclamations := protected.Group("/reclamations")
		{
			reclamations.GET("", controllers.GetReclamations)
			reclamations.GET("/export", middleware.AdminAuthMiddleware(), controllers.ExportReclamations)
			reclamations.GET("/:id", controllers.GetReclamationByID)
			reclamations.POST("", controllers.CreateReclamation)
			reclamations.PUT("/:id", middleware.AdminAuthMiddleware(), controllers.UpdateReclamation)
			reclamations.DELETE("/:id", middleware.AdminAuthMiddleware(), controllers.DeleteReclamation)
		}

		// Admin routes
		admin := protected.Group("")
		admin.Use(middleware.AdminAuthMiddleware())
		{
			admin.PUT("/users/:id", controllers.UpdateUser)
			admin.PATCH("/users/:id", controllers.UpdateUser)
			admin.DELETE("/users/:id", controllers.DeleteUser)

			admin.POST("/statistics", controllers.UpsertStatistic)
			admin.PUT("/statistics/:id", controllers.UpdateStatistic)
			admin.DELETE("/statistics/:id", controllers.DeleteStatistic)

			admin.GET("/admin/dashboard", controllers.AdminDashboard)
			admin.GET("/admin/audits", controllers.AdminGetAudits)
		}
	}
}
