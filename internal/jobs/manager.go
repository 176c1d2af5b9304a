package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/yourusername/subtitle-forge/internal/config"
	"github.com/yourusername/subtitle-forge/internal/subtitling"
)

const (
	taskTypeSubtitle = "subtitle:generate"
	queueSubtitle    = "subtitles"
)

// Pipeline はワーカーが実行する字幕生成処理を抽象化します。
type Pipeline interface {
	RunJob(ctx context.Context, jobID string, reporter subtitling.ProgressReporter) (*subtitling.Result, error)
}

// TaskPayload は字幕生成ジョブのペイロードです。
type TaskPayload struct {
	JobID    string `json:"jobId"`
	Filename string `json:"filename,omitempty"`
}

// Manager は Asynq を使ったジョブの投入とワーカー実行を担います。
type Manager struct {
	cfg      *config.Config
	client   *asynq.Client
	server   *asynq.Server
	mux      *asynq.ServeMux
	store    Store
	pipeline Pipeline
	logger   *log.Logger
}

// NewManager は Manager を初期化します。
func NewManager(cfg *config.Config, pipeline Pipeline, store Store, logger *log.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if pipeline == nil {
		return nil, errors.New("pipeline is nil")
	}
	if store == nil {
		return nil, errors.New("store is nil")
	}
	opt, err := asynq.ParseRedisURI(cfg.QueueRedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	concurrency := cfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 2
	}

	client := asynq.NewClient(opt)
	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				queueSubtitle: 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	manager := &Manager{
		cfg:      cfg,
		client:   client,
		server:   server,
		mux:      mux,
		store:    store,
		pipeline: pipeline,
		logger:   logger,
	}
	mux.HandleFunc(taskTypeSubtitle, manager.handleSubtitleTask)
	return manager, nil
}

// StartWorkers は Asynq サーバーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() {
	go func() {
		if err := m.server.Run(m.mux); err != nil && err != asynq.ErrServerClosed {
			if m.logger != nil {
				m.logger.Printf("asynq server stopped with error: %v", err)
			} else {
				log.Printf("asynq server stopped with error: %v", err)
			}
		}
	}()
}

// Shutdown はサーバーとクライアントを閉じます。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.server.Shutdown()
	m.client.Close()
	return nil
}

// Schedule はジョブレコードを作成してからタスクをキューへ投入します。
// レコードを先に作るため、最初に観測される状態は必ず processing / 0% です。
func (m *Manager) Schedule(ctx context.Context, jobID, filename string) error {
	if jobID == "" {
		return fmt.Errorf("jobID is required")
	}
	if err := m.store.Upsert(ctx, newProcessingRecord(jobID, filename)); err != nil {
		return err
	}

	body, err := json.Marshal(&TaskPayload{JobID: jobID, Filename: filename})
	if err != nil {
		return err
	}

	// 失敗は一時的ではない前提なのでリトライしない
	task := asynq.NewTask(taskTypeSubtitle, body, asynq.Queue(queueSubtitle))
	_, err = m.client.EnqueueContext(ctx, task, asynq.MaxRetry(0))
	if err != nil {
		_ = m.store.Delete(ctx, jobID)
		return err
	}
	return nil
}

// GetRecord はジョブ情報を取得します。
func (m *Manager) GetRecord(ctx context.Context, jobID string) (*Record, error) {
	return m.store.Get(ctx, jobID)
}

func (m *Manager) handleSubtitleTask(ctx context.Context, task *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}
	if payload.JobID == "" {
		return fmt.Errorf("missing jobId in payload")
	}

	executeJob(ctx, m.pipeline, m.store, m.logger, payload.JobID)
	return nil
}

// newProcessingRecord は投入直後のジョブレコードを作成します。
func newProcessingRecord(jobID, filename string) *Record {
	return &Record{
		JobID:    jobID,
		Filename: filename,
		Status:   StatusProcessing,
		Progress: ProgressInfo{
			Percent: 0,
			Stage:   "queued",
			Message: "Starting processing...",
		},
	}
}

// executeJob はパイプラインを実行し、結果をジョブレコードへ反映します。
// パイプラインのエラーはここで失敗ステータスに変換され、呼び出し元へは伝播しません。
// リセット済みジョブへの書き込み（ErrNotFound）は無視します。
func executeJob(ctx context.Context, pipeline Pipeline, store Store, logger *log.Logger, jobID string) {
	reporter := func(stage, message string, percent int) {
		err := store.UpdateProgress(ctx, jobID, ProgressInfo{
			Percent: percent,
			Stage:   stage,
			Message: message,
		})
		if err != nil && !errors.Is(err, ErrNotFound) && logger != nil {
			logger.Printf("failed to update progress job=%s: %v", jobID, err)
		}
	}

	result, err := pipeline.RunJob(ctx, jobID, reporter)
	if err != nil {
		failJob(ctx, store, logger, jobID, err)
		return
	}

	if err := store.MarkCompleted(ctx, jobID, result.SubtitlePath, result.VideoPath); err != nil {
		if errors.Is(err, ErrNotFound) {
			// ワーカー実行中にリセットされたジョブ。期限切れ掃除に任せる
			return
		}
		if logger != nil {
			logger.Printf("failed to mark job completed job=%s: %v", jobID, err)
		}
	}
}

func failJob(ctx context.Context, store Store, logger *log.Logger, jobID string, err error) {
	errInfo := &ErrorInfo{Code: subtitling.CodeInternal, Message: err.Error()}
	var apiErr *subtitling.Error
	if errors.As(err, &apiErr) {
		errInfo = &ErrorInfo{Code: apiErr.Code, Message: apiErr.Message}
	}

	if markErr := store.MarkFailed(ctx, jobID, errInfo); markErr != nil && !errors.Is(markErr, ErrNotFound) {
		if logger != nil {
			logger.Printf("failed to mark job failed job=%s: %v", jobID, markErr)
		}
	}
}
