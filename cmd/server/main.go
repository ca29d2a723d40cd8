package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "bulkedit-admin/configs"
	"bulkedit-admin/pkg/router"
	"bulkedit-admin/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const sweepInterval = 10 * time.Minute

func main() {
	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	// 設定の読み込み
	cfg := config.LoadConfig()
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := router.Setup(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize application: %v", err)
	}
	defer app.Store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweepSessions(ctx, app.Store)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting bulk-edit admin panel on :%s (backend %s)", cfg.Port, cfg.BackendURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ Server shutdown: %v", err)
	}
}

// sweepSessions は期限切れのセッションを定期的に削除します。
func sweepSessions(ctx context.Context, store services.SessionStore) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			switch s := store.(type) {
			case *services.MemoryStore:
				if n := s.Sweep(); n > 0 {
					log.Printf("🧹 [session] swept %d expired sessions", n)
				}
			case *services.SQLiteStore:
				n, err := s.Sweep()
				if err != nil {
					log.Printf("⚠️ [session] sweep: %v", err)
				} else if n > 0 {
					log.Printf("🧹 [session] swept %d expired sessions", n)
				}
			}
		}
	}
}
