package main

import (
	"fmt"
	"time"

	"github.com/cmsp-lab/lab-orders-api/config"
	"github.com/cmsp-lab/lab-orders-api/controllers"
	"github.com/cmsp-lab/lab-orders-api/middleware"
	"github.com/cmsp-lab/lab-orders-api/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// dependencies are the infrastructure pieces the API is assembled from.
type dependencies struct {
	cfg         *config.Config
	db          *gorm.DB
	files       services.FileStorage
	notifier    services.Notifier
	revocations services.RevocationStore
	reporter    services.ErrorReporter
	logger      *zap.Logger
}

// setupRouter builds the services and controllers and mounts every route.
func setupRouter(deps dependencies) (*gin.Engine, error) {
	store := services.NewGormOrderStore(deps.db)
	lifecycle := services.NewOrderLifecycle(store, deps.files, deps.notifier, deps.logger)
	clients := services.NewClientService(deps.db)
	operators := services.NewOperatorService(deps.db)
	auth := services.NewAuthService(deps.db, deps.cfg, deps.revocations)
	pdf := services.NewPDFRenderer()

	authenticate, err := middleware.EnsureValidToken(middleware.TokenSettings{
		Secret:   auth.Secret(),
		Issuer:   deps.cfg.JWTIssuer,
		Audience: deps.cfg.JWTAudience,
	}, auth, deps.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure authentication: %w", err)
	}

	health := controllers.NewHealthController(deps.db)
	session := controllers.NewAuthController(auth)
	clientOrders := controllers.NewClientOrderController(lifecycle, store, clients, pdf)
	operatorOrders := controllers.NewOperatorOrderController(lifecycle, store, operators, pdf)
	clientAdmin := controllers.NewClientAdminController(clients, store)

	router := gin.New()
	router.MaxMultipartMemory = 8 << 20
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(deps.logger))
	router.Use(middleware.Recovery(deps.reporter))
	router.Use(middleware.ReportErrors(deps.reporter))
	if len(deps.cfg.CORSAllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.cfg.CORSAllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
			ExposeHeaders:    []string{"Content-Disposition", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// downloads are already compressed or streamed as-is
	router.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPathsRegexs([]string{`/(pdf|file|final-file)$`}),
	))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", health.Health)
		v1.GET("/database/status", health.DatabaseStatus)

		v1.POST("/auth/login", session.Login)
		v1.POST("/auth/logout", authenticate, session.Logout)

		client := v1.Group("/client", authenticate, middleware.RequireRole(services.RoleClient))
		{
			client.POST("/orders", clientOrders.Create)
			client.GET("/orders", clientOrders.List)
			client.GET("/orders/:id/pdf", clientOrders.PDF)
			client.GET("/orders/:id/file", clientOrders.SourceFile)
			client.GET("/orders/:id/final-file", clientOrders.FinalFile)
		}

		operator := v1.Group("/operator", authenticate, middleware.RequireRole(services.RoleOperator))
		{
			operator.GET("/orders", operatorOrders.List)
			operator.GET("/orders/new/count", operatorOrders.CountNew)
			operator.PATCH("/orders/update/:id/:option", operatorOrders.UpdateStatus)
			operator.POST("/orders/:id/field-work", operatorOrders.RecordFieldWork)
			operator.DELETE("/orders/:id", operatorOrders.Delete)
			operator.GET("/orders/:id/pdf", operatorOrders.PDF)
			operator.GET("/orders/:id/file", operatorOrders.SourceFile)
			operator.GET("/orders/:id/final-file", operatorOrders.FinalFile)

			operator.GET("/clients", clientAdmin.List)
			operator.POST("/clients", clientAdmin.Create)
			operator.GET("/clients/:id", clientAdmin.Get)
			operator.PATCH("/clients/:id", clientAdmin.Update)
			operator.DELETE("/clients/:id", clientAdmin.Delete)
			operator.GET("/clients/:id/orders", clientAdmin.Orders)
		}
	}

	return router, nil
}
