// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// アプリケーション設定（認証は任意。未設定の場合はログイン不要のローカルツールとして動く）
	AppUsername     string // ログイン用ユーザー名
	AppPasswordHash string // bcryptでハッシュ化されたパスワード
	SessionSecret   string // セッション署名用の秘密鍵

	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// アップロード制限 / 保存先
	MaxFileSize int64  // アップロード動画の最大サイズ（バイト）
	UploadDir   string // アップロード動画と中間音声の保存先
	OutputDir   string // 字幕ファイルと焼き込み済み動画の保存先

	// ジョブ/キュー設定
	QueueRedisURL     string // Asynq用Redis接続URL（空の場合はプロセス内ワーカーで動作）
	WorkerConcurrency int    // 同時に実行するパイプラインワーカー数
	JobExpireMinutes  int    // ジョブと成果物の有効期限（分）

	// 外部ツール設定
	FFmpegPath       string // ffmpeg実行ファイルのパス
	WhisperPath      string // whisper.cpp CLI実行ファイルのパス
	WhisperModelPath string // whisperモデルファイル（.bin / .gguf）のパス
	WhisperLanguage  string // 文字起こし言語（"auto" で自動判定）
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	loadEnvFile()

	config := &Config{
		AppUsername:     getEnv("APP_USERNAME", ""),
		AppPasswordHash: getEnv("APP_PASSWORD_HASH", ""),
		SessionSecret:   getEnv("SESSION_SECRET", ""),

		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),

		MaxFileSize: getEnvAsInt64("MAX_FILE_SIZE", 10*1024*1024*1024), // 10GB
		UploadDir:   getEnv("UPLOAD_DIR", "uploads"),
		OutputDir:   getEnv("OUTPUT_DIR", "outputs"),

		QueueRedisURL:     getEnv("QUEUE_REDIS_URL", ""),
		WorkerConcurrency: getEnvAsInt("WORKER_CONCURRENCY", 2),
		JobExpireMinutes:  getEnvAsInt("JOB_EXPIRE_MINUTES", 60),

		FFmpegPath:       getEnv("FFMPEG_PATH", "ffmpeg"),
		WhisperPath:      getEnv("WHISPER_PATH", "whisper-cli"),
		WhisperModelPath: getEnv("WHISPER_MODEL_PATH", ""),
		WhisperLanguage:  getEnv("WHISPER_LANGUAGE", "auto"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
// ローカル開発では緩く、本番（release）モードでは厳格にチェックします。
func (c *Config) Validate() error {
	if c.WhisperModelPath == "" && c.GinMode == "release" {
		return fmt.Errorf("WHISPER_MODEL_PATH is required in release mode")
	}
	if c.GinMode == "release" {
		if c.SessionSecret == "" && c.AppUsername != "" {
			return fmt.Errorf("SESSION_SECRET is required when authentication is enabled in release mode")
		}
		if c.QueueRedisURL == "" {
			return fmt.Errorf("QUEUE_REDIS_URL is required in release mode")
		}
	}
	if c.AppUsername != "" && c.AppPasswordHash == "" {
		return fmt.Errorf("APP_PASSWORD_HASH is required when APP_USERNAME is set")
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive")
	}
	return nil
}

// AuthEnabled はログイン保護を有効にするかどうかを返します。
func (c *Config) AuthEnabled() bool {
	return c.AppUsername != "" && c.AppPasswordHash != ""
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 は環境変数を64ビット整数として取得します。
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
