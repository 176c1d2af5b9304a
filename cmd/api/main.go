// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/subtitle-forge/internal/auth"
	"github.com/yourusername/subtitle-forge/internal/config"
	"github.com/yourusername/subtitle-forge/internal/subtitling"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// マルチパート解析でメモリに保持する上限。超過分はディスクに退避される
	// （アップロードサイズ自体の上限は MAX_FILE_SIZE で検証する）
	router.MaxMultipartMemory = 32 << 20

	// セッションストアの設定（クッキー署名鍵は認証有効時に必須）
	sessionSecret := cfg.SessionSecret
	if sessionSecret == "" {
		sessionSecret = "subtitle-forge-dev-secret"
	}
	store := cookie.NewStore([]byte(sessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   auth.SessionMaxAgeSeconds(),
		HttpOnly: true,
		Secure:   cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteStrictMode,
	})
	router.Use(sessions.Sessions(auth.SessionCookieName, store))

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	// CORS許可オリジンを設定（カンマ区切りの文字列を配列に変換）
	origins := strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowOrigins = origins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"Authorization",
		"X-CSRF-Token", // CSRF保護用ヘッダー
	}
	// フロントエンドがレスポンスヘッダーから CSRF トークンを読み取れるように公開
	corsConfig.ExposeHeaders = []string{"X-CSRF-Token"}
	router.Use(cors.New(corsConfig))

	// ルーティングの設定
	backend, err := setupRoutes(router, cfg)
	if err != nil {
		log.Fatalf("Failed to set up routes: %v", err)
	}

	// サーバーの起動
	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Printf("Starting API server on %s (mode: %s)", addr, cfg.GinMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// SIGINT / SIGTERM を待って実行中のジョブとHTTP接続を畳む
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown: %v", err)
	}
	if err := backend.Shutdown(ctx); err != nil {
		log.Printf("Job backend shutdown: %v", err)
	}
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "subtitle-forge-api",
		"version": "0.1.0",
	})
}

// setupRoutes は API と認証周りの配線を行います。
func setupRoutes(router *gin.Engine, cfg *config.Config) (jobBackend, error) {
	// まずは誰でも叩けるヘルスチェックを登録
	router.GET("/health", handleHealth)

	svc, err := subtitling.NewService(cfg)
	if err != nil {
		return nil, err
	}

	backend, store, err := setupJobs(cfg, svc)
	if err != nil {
		return nil, err
	}

	authManager := auth.NewManager(cfg)

	authRoutes := router.Group("/auth")
	{
		// ログイン時はセッション未生成なので CSRF 検証は不要
		authRoutes.POST("/login", authManager.Login)
		authRoutes.GET("/session", authManager.Session)
		authRoutes.POST("/logout",
			authManager.RequireLogin(),
			authManager.VerifyCSRF(),
			authManager.Logout,
		)
	}

	protected := router.Group("")
	protected.Use(authManager.RequireLogin(), authManager.VerifyCSRF())
	{
		protected.POST("/upload", subtitling.UploadHandler(svc, backend))
		protected.GET("/status/:id", jobStatusHandler(backend))
		protected.GET("/download/subtitle/:id", artifactHandler(backend, svc, subtitling.ArtifactSubtitle, true))
		protected.GET("/download/video/:id", artifactHandler(backend, svc, subtitling.ArtifactVideo, true))
		protected.GET("/stream/video/:id", artifactHandler(backend, svc, subtitling.ArtifactVideo, false))
		protected.DELETE("/jobs/:id", jobResetHandler(svc, store))
	}

	// 簡易フロントエンド
	router.StaticFile("/", "./static/index.html")
	router.Static("/js", "./static/js")

	return backend, nil
}
