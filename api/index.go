package handler

import (
	"log"
	"net/http"
	"sync"

	config "bulkedit-admin/configs"
	"bulkedit-admin/pkg/router"

	"github.com/gin-gonic/gin"
)

var (
	app     *gin.Engine
	initErr error
	once    sync.Once
)

// setupApp はGinアプリケーションを初期化します。
// サーバーレス環境では、リクエストごとに初期化が走らないようsync.Onceで一度だけ実行します。
func setupApp() (*gin.Engine, error) {
	once.Do(func() {
		log.Printf("🟢 [setupApp] Initializing Gin application")

		// .envファイルはVercelの環境変数設定から読み込まれるため、ここではgodotenvを呼び出しません。
		cfg := config.LoadConfig()
		// インスタンスをまたいでセッションは共有されないため、SESSION_STORE_PATH は /tmp 配下を想定
		a, err := router.Setup(cfg)
		if err != nil {
			log.Printf("FATAL: Failed to initialize application in Vercel function: %v", err)
			initErr = err
			return
		}
		app = a.Engine
		log.Printf("🟢 [setupApp] Ready, backend=%s", cfg.BackendURL)
	})
	return app, initErr
}

// Handler はVercelからのすべてのリクエストを処理するエントリーポイントです。
func Handler(w http.ResponseWriter, r *http.Request) {
	engine, err := setupApp()
	if err != nil {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	engine.ServeHTTP(w, r)
}
