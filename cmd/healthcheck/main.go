package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	config "bulkedit-admin/configs"
	"bulkedit-admin/pkg/backend"

	"github.com/joho/godotenv"
)

// バックエンドへの疎通を確認するCLIです。
//
//	go run ./cmd/healthcheck -store 123456
func main() {
	storeID := flag.String("store", "", "ステータスを問い合わせるストアID")
	products := flag.Bool("products", false, "商品一覧も取得する")
	flag.Parse()

	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil {
		log.Printf("WARN: .env file not found or could not be loaded: %v", err)
	}
	cfg := config.LoadConfig()

	if *storeID == "" {
		*storeID = os.Getenv("HEALTHCHECK_STORE_ID")
	}
	if *storeID == "" {
		log.Fatal("FATAL: -store または HEALTHCHECK_STORE_ID を指定してください。")
	}

	client := backend.NewClient(cfg.BackendURL, 60*time.Second)

	// --- HTTPクライアントのセットアップ ---
	if proxyURL := os.Getenv("BACKEND_PROXY_URL"); proxyURL != "" {
		proxy, err := url.Parse(proxyURL)
		if err == nil {
			client.SetTransport(&http.Transport{Proxy: http.ProxyURL(proxy)})
			log.Println("INFO: HTTPクライアントにプロキシを設定しました:", proxyURL)
		} else {
			log.Printf("WARN: 無効なプロキシURLです。プロキシは使用されません: %v", err)
		}
	}

	client.SetObserver(func(method, path string, status int, elapsed time.Duration, err error) {
		log.Printf("INFO: %s %s -> %d (%s)", method, path, status, elapsed.Round(time.Millisecond))
	})

	ctx := context.Background()
	log.Println("INFO: バックエンド:", client.BaseURL())

	status, err := client.Status(ctx, *storeID)
	if err != nil {
		log.Fatalf("ERROR: ステータスの取得に失敗: %v", err)
	}

	log.Println("--- ステータス ---")
	log.Println("ストア名:", status.StoreName)
	log.Println("商品数:", status.TotalProducts)
	log.Println("カテゴリ数:", status.TotalCategories)
	if status.LastError != "" {
		log.Println("最後のエラー:", status.LastError)
	}

	if *products {
		items, err := client.ListProducts(ctx, *storeID, cfg.ProductBatchLimit, "")
		if err != nil {
			log.Fatalf("ERROR: 商品一覧の取得に失敗: %v", err)
		}
		log.Printf("--- 商品 (%d件) ---", len(items))
		for _, p := range items {
			log.Printf("%s\t%s\t%s\tR$ %s\t%d", p.ID, p.SKU, p.Name, p.Price.StringFixed(2), p.Stock)
		}
	}

	if status.TotalProducts == 0 {
		log.Println("\nWARN: カタログが空です。同期が完了していない可能性があります。")
		return
	}
	log.Println("\nSUCCESS: 正常に応答が返ってきました。")
}
