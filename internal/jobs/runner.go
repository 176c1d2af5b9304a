package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// LocalRunner は Redis なしで動くインプロセスのジョブ実行器です。
// ジョブごとにゴルーチンを起動し、Manager と同じレコード遷移をたどります。
type LocalRunner struct {
	store    Store
	pipeline Pipeline
	logger   *log.Logger
	wg       sync.WaitGroup
}

// NewLocalRunner は LocalRunner を初期化します。
func NewLocalRunner(pipeline Pipeline, store Store, logger *log.Logger) *LocalRunner {
	return &LocalRunner{
		store:    store,
		pipeline: pipeline,
		logger:   logger,
	}
}

// Schedule はジョブレコードを作成し、バックグラウンドで処理を開始します。
func (r *LocalRunner) Schedule(ctx context.Context, jobID, filename string) error {
	if jobID == "" {
		return fmt.Errorf("jobID is required")
	}
	if err := r.store.Upsert(ctx, newProcessingRecord(jobID, filename)); err != nil {
		return err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				if r.logger != nil {
					r.logger.Printf("panic in job worker job=%s: %v", jobID, rec)
				}
				failJob(context.Background(), r.store, r.logger, jobID,
					fmt.Errorf("worker panic: %v", rec))
			}
		}()
		// HTTP リクエストのコンテキストに縛られないよう独立したコンテキストで実行する
		executeJob(context.Background(), r.pipeline, r.store, r.logger, jobID)
	}()
	return nil
}

// GetRecord はジョブ情報を取得します。
func (r *LocalRunner) GetRecord(ctx context.Context, jobID string) (*Record, error) {
	return r.store.Get(ctx, jobID)
}

// Shutdown は実行中のジョブが終わるまで待機します。
func (r *LocalRunner) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
