package subtitling

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"

	"github.com/gin-gonic/gin"
)

// UploadService はアップロードの受付とジョブの破棄を提供します。
type UploadService interface {
	PrepareJob(ctx context.Context, file *multipart.FileHeader) (*JobManifest, error)
	DiscardJob(jobID string) error
}

// JobScheduler はジョブを非同期ワーカーに引き渡すためのインターフェースです。
type JobScheduler interface {
	Schedule(ctx context.Context, jobID, filename string) error
}

// UploadHandler は POST /upload のハンドラーを返します。
// 入力を検証・保存してジョブを発行し、パイプラインの完了を待たずに jobId を返します。
func UploadHandler(svc UploadService, scheduler JobScheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, err := c.FormFile("video")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    CodeInvalidInput,
				"message": "multipart/form-data の video フィールドで動画を送信してください。",
			})
			return
		}

		manifest, err := svc.PrepareJob(c.Request.Context(), file)
		if err != nil {
			RespondWithError(c, err)
			return
		}

		if err := scheduler.Schedule(c.Request.Context(), manifest.JobID, manifest.OriginalName); err != nil {
			if cleanupErr := svc.DiscardJob(manifest.JobID); cleanupErr != nil {
				err = fmt.Errorf("%w (cleanup failed: %v)", err, cleanupErr)
			}
			RespondWithError(c, err)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"jobId":   manifest.JobID,
			"message": "Upload successful, processing started",
		})
	}
}

// RespondWithError はサービスエラーを HTTP レスポンスへ対応付けます。
func RespondWithError(c *gin.Context, err error) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		status := http.StatusBadRequest
		switch apiErr.Code {
		case CodeLimitExceeded:
			status = http.StatusRequestEntityTooLarge
		case CodeJobNotFound:
			status = http.StatusNotFound
		case CodeResultNotReady:
			status = http.StatusConflict
		case CodeInternal, CodeExtractFailed, CodeTranscribeFailed, CodeSubtitleFailed, CodeBurnInFailed:
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		})
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusRequestTimeout, gin.H{
			"code":    "REQUEST_CANCELED",
			"message": "リクエストがキャンセルされました。",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    CodeInternal,
			"message": "サーバー内部でエラーが発生しました。",
		})
	}
}

// StreamArtifact は成果物ファイルをレスポンスへ書き出します。
// attachment が真の場合はダウンロード用ヘッダーを付与し、偽の場合はそのまま再生用に返します。
func StreamArtifact(c *gin.Context, artifact *Artifact, file *os.File, attachment bool) {
	if attachment {
		encodedName := url.PathEscape(artifact.Filename)
		c.Header("Content-Disposition",
			fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", artifact.Filename, encodedName))
	}
	c.Header("Cache-Control", "no-store")
	c.Header("X-Job-Id", artifact.JobID)
	c.DataFromReader(http.StatusOK, artifact.Size, artifact.ContentType, file, nil)
}
