package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/subtitle-forge/internal/config"
	"github.com/yourusername/subtitle-forge/internal/jobs"
	"github.com/yourusername/subtitle-forge/internal/subtitling"
)

// jobBackend はジョブの投入・参照・停止をまとめたインターフェイスです。
// Redis モード（jobs.Manager）とインプロセスモード（jobs.LocalRunner）の両方が満たします。
type jobBackend interface {
	Schedule(ctx context.Context, jobID, filename string) error
	GetRecord(ctx context.Context, jobID string) (*jobs.Record, error)
	Shutdown(ctx context.Context) error
}

// setupJobs は設定に応じてジョブ実行基盤を構築します。
// QUEUE_REDIS_URL が設定されていれば Asynq + Redis、なければインプロセス実行になります。
func setupJobs(cfg *config.Config, svc *subtitling.Service) (jobBackend, jobs.Store, error) {
	ttlMinutes := cfg.JobExpireMinutes
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	ttl := time.Duration(ttlMinutes) * time.Minute

	if cfg.QueueRedisURL == "" {
		store := jobs.NewMemoryStore(ttl)
		runner := jobs.NewLocalRunner(svc, store, log.Default())
		return runner, store, nil
	}

	opt, err := redis.ParseURL(cfg.QueueRedisURL)
	if err != nil {
		return nil, nil, err
	}
	redisClient := redis.NewClient(opt)
	store := jobs.NewRedisStore(redisClient, ttl)

	manager, err := jobs.NewManager(cfg, svc, store, log.Default())
	if err != nil {
		return nil, nil, err
	}
	manager.StartWorkers()
	return manager, store, nil
}

type recordGetter interface {
	GetRecord(ctx context.Context, jobID string) (*jobs.Record, error)
}

type artifactOpener interface {
	OpenArtifact(jobID string, kind subtitling.ArtifactKind) (*subtitling.Artifact, *os.File, error)
}

type jobDiscarder interface {
	DiscardJob(jobID string) error
}

func requireJobID(c *gin.Context) (string, bool) {
	jobID := c.Param("id")
	if strings.TrimSpace(jobID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_INPUT",
			"message": "jobId を指定してください。",
		})
		return "", false
	}
	return jobID, true
}

func jobStatusHandler(getter recordGetter) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID, ok := requireJobID(c)
		if !ok {
			return
		}

		record, err := getter.GetRecord(c.Request.Context(), jobID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "ジョブ情報の取得に失敗しました。",
			})
			return
		}
		if record == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "JOB_NOT_FOUND",
				"message": "指定されたジョブは存在しません。",
			})
			return
		}

		payload := gin.H{
			"jobId":    record.JobID,
			"filename": record.Filename,
			"status":   record.Status,
			"progress": gin.H{
				"percent": record.Progress.Percent,
				"stage":   record.Progress.Stage,
				"message": record.Progress.Message,
			},
			"updatedAt": record.UpdatedAt,
		}
		if record.Error != nil {
			payload["error"] = record.Error
		}

		c.JSON(http.StatusOK, payload)
	}
}

// artifactHandler は成果物の配信ハンドラーを作ります。
// attachment が true ならダウンロード、false ならインライン再生用のレスポンスを返します。
func artifactHandler(getter recordGetter, opener artifactOpener, kind subtitling.ArtifactKind, attachment bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID, ok := requireJobID(c)
		if !ok {
			return
		}

		record, err := getter.GetRecord(c.Request.Context(), jobID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "ジョブ情報の取得に失敗しました。",
			})
			return
		}
		if record == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "JOB_NOT_FOUND",
				"message": "指定されたジョブは存在しません。",
			})
			return
		}
		if record.Status != jobs.StatusCompleted {
			c.JSON(http.StatusConflict, gin.H{
				"code":    "RESULT_NOT_READY",
				"message": "ジョブはまだ完了していません。",
			})
			return
		}

		artifact, file, err := opener.OpenArtifact(jobID, kind)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				c.JSON(http.StatusNotFound, gin.H{
					"code":    "JOB_RESULT_NOT_FOUND",
					"message": "ジョブの成果物が見つかりませんでした。",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "ジョブの成果物取得に失敗しました。",
			})
			return
		}
		defer file.Close()

		subtitling.StreamArtifact(c, artifact, file, attachment)
	}
}

// jobResetHandler はジョブの成果物とレコードを破棄します。
// 存在しないジョブに対しても成功を返します（冪等）。
func jobResetHandler(discarder jobDiscarder, store jobs.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID, ok := requireJobID(c)
		if !ok {
			return
		}

		if err := discarder.DiscardJob(jobID); err != nil {
			log.Printf("failed to discard job artifacts job=%s: %v", jobID, err)
		}
		if err := store.Delete(c.Request.Context(), jobID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "ジョブの削除に失敗しました。",
			})
			return
		}
		c.Status(http.StatusNoContent)
	}
}
