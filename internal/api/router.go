package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"breederhub/api/internal/api/handlers"
	"breederhub/api/internal/api/middleware"
	"breederhub/api/internal/cache"
	"breederhub/api/internal/config"
	"breederhub/api/internal/services"
	"breederhub/api/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, taskClient handlers.IAsynqClient) *gin.Engine {
	userService := services.NewUserService(db, cfg)
	identityService := services.NewIdentityService(userService, cfg)
	blockService := services.NewBlockService(db, cfg, userService)
	conversationService := services.NewConversationService(db, cfg)
	breedService := services.NewBreedService(db, cfg)
	listingService := services.NewListingService(db, cfg, breedService)
	messageService := services.NewMessageService(db, cfg, userService, listingService, blockService, conversationService)
	inboxService := services.NewInboxService(db, cfg, userService, listingService, conversationService)
	adminService := services.NewAdminService(db, cfg, userService)
	auditService := services.NewAuditService(db, cfg, taskClient)
	postService := services.NewPostService(db, cfg)
	submissionService := services.NewSubmissionService(db, cfg)
	s3StorageService, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatalf("CRITICAL: Failed to initialize S3 storage for API: %v", err)
	}

	r := gin.Default()

	// Order matters: metrics wrap everything, audit runs after auth has resolved the caller.
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.CORSMiddleware(cfg.CorsAllowedOrigin))
	r.Use(middleware.AuditMiddleware(auditService))

	jsonApiHandler := handlers.NewJsonApiHandler(cfg, taskClient, identityService, userService, listingService, adminService, s3StorageService, auditService)
	restListingHandler := handlers.NewRestListingHandler(listingService, userService, s3StorageService)
	restUserHandler := handlers.NewRestUserHandler(userService, listingService, s3StorageService)
	restMessageHandler := handlers.NewRestMessageHandler(messageService, conversationService, inboxService, blockService)
	restAdminHandler := handlers.NewRestAdminHandler(adminService, auditService)
	restBreedHandler := handlers.NewRestBreedHandler(breedService)
	restPostHandler := handlers.NewRestPostHandler(postService)
	restSubmissionHandler := handlers.NewRestSubmissionHandler(submissionService)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		v1.POST("/api", jsonApiHandler.HandleRequest)
		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		authRequired := v1.Group("")
		authRequired.Use(middleware.AuthMiddleware(identityService))

		restListingHandler.RegisterRoutes(v1, authRequired, middleware.OptionalAuthMiddleware(identityService))
		restUserHandler.RegisterRoutes(v1, authRequired)
		restMessageHandler.RegisterRoutes(authRequired.Group("/messages"))

		adminRequired := v1.Group("/admin")
		adminRequired.Use(middleware.AuthMiddleware(identityService), middleware.AdminMiddleware())
		restAdminHandler.RegisterRoutes(adminRequired)

		restBreedHandler.RegisterRoutes(v1, authRequired, adminRequired)
		restPostHandler.RegisterRoutes(v1, adminRequired)
		restSubmissionHandler.RegisterRoutes(v1, adminRequired)
	}

	return r
}

// SetupServiceRouter configures the internal service API. It is bound to a separate port and
// must not be exposed publicly.
func SetupServiceRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			fmt.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
				fmt.Println("Shutdown signal sent successfully.")
			default:
				fmt.Println("Shutdown channel already signaled or blocked.")
			}
		case "health":
			ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
			defer cancel()
			status := gin.H{"run_mode": cfg.RunMode, "mongo": "ok", "redis": "ok"}
			healthy := true
			if err := db.Client().Ping(ctx, readpref.Primary()); err != nil {
				log.Printf("Service API: MongoDB ping failed: %v", err)
				status["mongo"] = err.Error()
				healthy = false
			}
			if err := cache.Ping(ctx, rdb); err != nil {
				log.Printf("Service API: Redis ping failed: %v", err)
				status["redis"] = err.Error()
				healthy = false
			}
			code := http.StatusOK
			if !healthy {
				code = http.StatusServiceUnavailable
			}
			c.JSON(code, gin.H{"success": healthy, "data": status})
		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}
