// Package router は管理画面サーバーのGinエンジンを組み立てます。
// cmd/server と api/index.go（サーバーレス）の両方から使われます。
package router

import (
	"fmt"
	"log"

	config "bulkedit-admin/configs"
	"bulkedit-admin/pkg/backend"
	"bulkedit-admin/pkg/handlers"
	"bulkedit-admin/pkg/models"
	"bulkedit-admin/pkg/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Deps はルーターの依存関係です。
type Deps struct {
	Config     *config.Config
	Store      services.SessionStore
	Client     *backend.Client
	Tools      []models.Tool
	Monitoring *services.MonitoringService
}

// App は組み立て済みのアプリケーションです。
type App struct {
	Engine     *gin.Engine
	Store      services.SessionStore
	Monitoring *services.MonitoringService
	Admin      *handlers.AdminHandler
}

// Setup は設定からストア・バックエンドクライアント・ツールカタログを生成してルーターを組み立てます。
func Setup(cfg *config.Config) (*App, error) {
	store, err := services.NewSessionStore(cfg.SessionStorePath, cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("セッションストアの初期化に失敗: %w", err)
	}

	tools, err := config.LoadToolCatalog()
	if err != nil {
		store.Close()
		return nil, err
	}

	monitoring := services.NewMonitoringService()
	client := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout)
	client.SetObserver(monitoring.RecordBackendCall)

	app, err := New(Deps{
		Config:     cfg,
		Store:      store,
		Client:     client,
		Tools:      tools,
		Monitoring: monitoring,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	return app, nil
}

// New はルートとミドルウェアを登録したエンジンを返します。
func New(d Deps) (*App, error) {
	cfg := d.Config
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}
	monitoring := d.Monitoring
	if monitoring == nil {
		monitoring = services.NewMonitoringService()
	}

	tmpl, err := handlers.LoadTemplates()
	if err != nil {
		return nil, err
	}

	// サービスの初期化
	toolService := services.NewToolService(d.Store, d.Tools)
	svc := &handlers.Services{
		Store:   d.Store,
		Auth:    services.NewAuthService(d.Store, d.Client),
		Catalog: services.NewCatalogService(d.Store, d.Client, cfg.ProductBatchLimit),
		Tools:   toolService,
		Chat:    services.NewChatService(d.Store, d.Client, toolService),
		History: services.NewHistoryService(d.Store, d.Client, cfg.HistoryRefreshDelay),
		Export:  services.NewExportService(),
	}
	signer := services.NewTokenSigner(cfg.SessionSecret, cfg.SessionTTL)
	sessions := handlers.NewSessionManager(d.Store, svc.Auth, signer, cfg.SessionCookie, cfg.CookieSecure)

	// ハンドラーの初期化
	adminHandler := handlers.NewAdminHandler(cfg)
	monitoringHandler := handlers.NewMonitoringHandler(monitoring)
	authHandler := handlers.NewAuthHandler(svc, sessions)
	catalogHandler := handlers.NewCatalogHandler(svc)
	toolHandler := handlers.NewToolHandler(svc)
	chatHandler := handlers.NewChatHandler(svc)
	historyHandler := handlers.NewHistoryHandler(svc)
	pageHandler := handlers.NewPageHandler(svc, sessions)

	r := gin.Default()
	r.SetHTMLTemplate(tmpl)

	// ミドルウェアの登録
	r.Use(monitoring.LoggingMiddleware())
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	r.Use(handlers.SecurityHeaders(cfg.FrameAncestors))
	r.Use(adminHandler.MaintenanceGate())

	// ヘルスチェックエンドポイント
	r.GET("/health", adminHandler.HealthCheck)

	// 運用API
	ops := r.Group("/api/v1")
	ops.Use(handlers.APIKeyAuth(cfg.APIKey))
	{
		admin := ops.Group("/admin")
		{
			admin.GET("/health-status", adminHandler.GetHealthStatus)
			admin.POST("/maintenance/start", adminHandler.StartMaintenance)
			admin.POST("/maintenance/stop", adminHandler.StopMaintenance)
		}

		ops.GET("/monitoring/logs", monitoringHandler.GetLogs)
	}

	// 管理画面
	// クッキーのセッションで状態を変える経路は、別サイトからの送信を受け付けない
	sameOrigin := handlers.SameOrigin(cfg.AllowedOrigins)

	panel := r.Group("/")
	panel.Use(sameOrigin, sessions.Load())
	{
		panel.GET("/", pageHandler.Dashboard)
		panel.GET("/history", pageHandler.HistoryPage)
		panel.GET("/login", pageHandler.LoginPage)
		panel.POST("/login", pageHandler.SubmitLogin)
		panel.GET("/auth/nuvemshop", authHandler.OAuthRedirect)

		forms := panel.Group("/panel")
		{
			forms.POST("/logout", pageHandler.SubmitLogout)
			forms.POST("/chat", pageHandler.SubmitChat)
			forms.POST("/apply", pageHandler.SubmitApply)
			forms.POST("/filter", pageHandler.SubmitFilter)
			forms.POST("/filter/clear", pageHandler.SubmitClearFilter)
			forms.POST("/products/refresh", pageHandler.SubmitRefresh)
			forms.POST("/tool", pageHandler.SubmitTool)
			forms.POST("/history/revert", pageHandler.SubmitRevert)
		}
	}

	// 管理画面のJSON API
	v1 := r.Group("/api/v1")
	v1.Use(sameOrigin, handlers.RequireJSON(), sessions.Load())
	{
		v1.GET("/session", authHandler.GetSession)

		auth := v1.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.GET("/oauth-url", authHandler.OAuthURL)
			auth.POST("/logout", authHandler.Logout)
		}

		v1.GET("/status", catalogHandler.GetStatus)
		v1.GET("/dashboard", catalogHandler.GetDashboard)

		products := v1.Group("/products")
		{
			products.GET("", catalogHandler.ListProducts)
			products.POST("/filter", catalogHandler.FilterProducts)
			products.DELETE("/filter", catalogHandler.ClearFilter)
			products.GET("/export", catalogHandler.ExportProducts)
		}

		tools := v1.Group("/tools")
		{
			tools.GET("", toolHandler.ListTools)
			tools.POST("/select", toolHandler.SelectTool)
		}

		chat := v1.Group("/chat")
		{
			chat.GET("", chatHandler.GetTranscript)
			chat.POST("", chatHandler.ChatInput)
			chat.POST("/apply", chatHandler.ApplyChanges)
		}

		history := v1.Group("/history")
		{
			history.GET("", historyHandler.ListHistory)
			history.GET("/export", historyHandler.ExportHistory)
			history.POST("/:id/revert", historyHandler.Revert)
		}
	}

	log.Printf("🟢 [router] backend=%s store=%T tools=%d", d.Client.BaseURL(), d.Store, len(toolService.Catalog()))
	return &App{Engine: r, Store: d.Store, Monitoring: monitoring, Admin: adminHandler}, nil
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	c.AddAllowHeaders("X-API-KEY")
	if len(origins) == 0 {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowWildcard = true
	c.AllowCredentials = true
	return c
}
