package routes

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"

	"github.com/beenthere/btdt-api/internal/app/domain/auth"
	"github.com/beenthere/btdt-api/internal/app/domain/reviews"
	"github.com/beenthere/btdt-api/internal/app/domain/shops"
	"github.com/beenthere/btdt-api/internal/app/domain/users"
	"github.com/beenthere/btdt-api/internal/pkg/config"
)

const apiPrefix = "/api/1.0"

type AppHandlers struct {
	Users   *users.Handler
	Shops   *shops.Handler
	Reviews *reviews.Handler

	Auth *auth.Middleware
}

func Setup(r *gin.Engine, db *mongo.Database, cfg *config.Config, log *zap.Logger) {
	slogLog := slog.Default()

	handlers := setupDependencies(db, cfg, slogLog)
	setupRouter(r, handlers, log)
}

func setupDependencies(db *mongo.Database, cfg *config.Config, log *slog.Logger) *AppHandlers {
	// Auth building blocks
	hasher := auth.NewHasher(cfg.Auth.Salt, cfg.Auth.HashIterations)
	codec := auth.NewTokenCodec(cfg.Auth.SecretKey, cfg.Auth.SessionHorizon)
	store := auth.NewMongoStore(db, cfg.Auth.SessionHorizon, log)
	authService := auth.NewService(store, codec, hasher, log)
	authMiddleware := auth.NewMiddleware(authService, store, codec, cfg.Auth.RenewalWindow, log)

	// Create repositories
	userRepo := users.NewMongoRepo(db, log)
	shopRepo := shops.NewMongoRepo(db, log)
	reviewRepo := reviews.NewMongoRepo(db, log)

	return &AppHandlers{
		Users:   users.NewHandler(authService, userRepo, log),
		Shops:   shops.NewHandler(shopRepo, log),
		Reviews: reviews.NewHandler(reviewRepo),
		Auth:    authMiddleware,
	}
}

func setupRouter(r *gin.Engine, h *AppHandlers, log *zap.Logger) {
	api := r.Group(apiPrefix)

	usersGroup := api.Group("/users")
	{
		usersGroup.POST("/create", h.Users.Register)
		usersGroup.POST("/login", h.Users.Login)

		protected := usersGroup.Group("")
		protected.Use(h.Auth.RequireUser())
		{
			protected.GET("/me", h.Users.Me)
			protected.POST("/logout", h.Users.Logout)
			protected.POST("/logout_all", h.Users.LogoutAll)
			protected.DELETE("/deactivate", h.Users.Deactivate)
			protected.PUT("/password", h.Users.UpdatePassword)
		}

		admin := usersGroup.Group("")
		admin.Use(h.Auth.RequireUser(), h.Auth.RequireAdmin())
		{
			admin.GET("", h.Users.ListUsers)
			admin.PUT("/:user_id/verify", h.Users.SetVerified)
			admin.PUT("/:user_id/recover", h.Users.Recover)
		}

		// Public profile last so /me and friends match first.
		usersGroup.GET("/:user_id", h.Users.GetUser)
	}

	shopsGroup := api.Group("/shops")
	{
		shopsGroup.GET("", h.Shops.List)
		shopsGroup.GET("/get_types", h.Shops.GetTypes)

		reviewsGroup := shopsGroup.Group("/reviews")
		{
			reviewsGroup.GET("", h.Reviews.List)

			protected := reviewsGroup.Group("")
			protected.Use(h.Auth.RequireUser())
			{
				protected.POST("", h.Reviews.Upsert)
				protected.PUT("", h.Reviews.Upsert)
				protected.POST("/like", h.Reviews.Like)
				protected.DELETE("/like", h.Reviews.Unlike)
			}
		}

		shopsGroup.GET("/:shop_id", h.Shops.Get)
		shopsGroup.GET("/:shop_id/photo", h.Shops.GetPhoto)

		protected := shopsGroup.Group("")
		protected.Use(h.Auth.RequireUser())
		{
			protected.POST("", h.Shops.Create)
			protected.PUT("/:shop_id/photo", h.Shops.UpdatePhoto)
			protected.DELETE("/:shop_id/photo", h.Shops.DeletePhoto)
			protected.DELETE("/:shop_id/deactivate", h.Shops.Deactivate)
		}

		admin := shopsGroup.Group("")
		admin.Use(h.Auth.RequireUser(), h.Auth.RequireAdmin())
		{
			admin.DELETE("/:shop_id/delete", h.Shops.Delete)
			admin.PUT("/:shop_id/reactivate", h.Shops.Reactivate)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		log.Info("404 - Not found",
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
			zap.String("ip", c.ClientIP()),
		)
		c.JSON(404, gin.H{"error": "not found"})
	})
}
