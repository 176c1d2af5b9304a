package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const jobKeyPrefix = "job:"

// ErrNotFound は存在しない（またはリセット済みの）ジョブへの更新を表します。
var ErrNotFound = errors.New("job not found")

// Store はジョブ状態の保存先を抽象化します。
// Get は未知のIDに対して (nil, nil) を返し、既定値の Record を返してはいけません。
// 各更新はひとまとまりで適用され、読み手が途中状態を観測することはありません。
type Store interface {
	Get(ctx context.Context, jobID string) (*Record, error)
	Upsert(ctx context.Context, record *Record) error
	UpdateProgress(ctx context.Context, jobID string, progress ProgressInfo) error
	MarkCompleted(ctx context.Context, jobID, subtitlePath, videoPath string) error
	MarkFailed(ctx context.Context, jobID string, errInfo *ErrorInfo) error
	Delete(ctx context.Context, jobID string) error
}

// RedisStore はジョブ状態を Redis に保存します。
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore は RedisStore を作成します。
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		rdb: rdb,
		ttl: ttl,
	}
}

// Get はジョブ情報を取得します。
func (s *RedisStore) Get(ctx context.Context, jobID string) (*Record, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID is required")
	}
	data, err := s.rdb.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Upsert はジョブ情報を保存します（存在しない場合は作成）。
func (s *RedisStore) Upsert(ctx context.Context, record *Record) error {
	if record == nil {
		return fmt.Errorf("record is nil")
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	if record.ExpiresAt.IsZero() && s.ttl > 0 {
		record.ExpiresAt = record.CreatedAt.Add(s.ttl)
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, jobKey(record.JobID), payload, s.ttl).Err()
}

// UpdateProgress は進捗を更新します。
func (s *RedisStore) UpdateProgress(ctx context.Context, jobID string, progress ProgressInfo) error {
	return s.updatePartial(ctx, jobID, func(record *Record) {
		record.Progress = progress
	})
}

// MarkCompleted はジョブ完了時の成果物パスを保存します。
func (s *RedisStore) MarkCompleted(ctx context.Context, jobID, subtitlePath, videoPath string) error {
	return s.updatePartial(ctx, jobID, func(record *Record) {
		record.Status = StatusCompleted
		record.Progress = ProgressInfo{
			Percent: 100,
			Stage:   "completed",
			Message: "Processing completed successfully!",
		}
		record.SubtitlePath = subtitlePath
		record.VideoPath = videoPath
		record.Error = nil
	})
}

// MarkFailed はジョブ失敗時の情報を保存します。
func (s *RedisStore) MarkFailed(ctx context.Context, jobID string, errInfo *ErrorInfo) error {
	return s.updatePartial(ctx, jobID, func(record *Record) {
		record.Status = StatusFailed
		if errInfo != nil {
			record.Error = errInfo
			record.Progress.Message = errInfo.Message
		}
	})
}

// Delete はジョブ情報を削除します。存在しないIDに対しては何もしません。
func (s *RedisStore) Delete(ctx context.Context, jobID string) error {
	if jobID == "" {
		return nil
	}
	return s.rdb.Del(ctx, jobKey(jobID)).Err()
}

// updateRetryLimit は WATCH 競合時の再試行上限です。
const updateRetryLimit = 5

// updatePartial はレコードを読み出して変更し、WATCH 付きトランザクションで書き戻します。
// 読み出しと書き込みの間に削除（リセット）が割り込んだ場合はトランザクションが
// 失敗し、再試行で ErrNotFound に到達します。削除済みレコードが復活することはありません。
func (s *RedisStore) updatePartial(ctx context.Context, jobID string, mutate func(*Record)) error {
	key := jobKey(jobID)
	for i := 0; i < updateRetryLimit; i++ {
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if err == redis.Nil {
					return fmt.Errorf("%w: %s", ErrNotFound, jobID)
				}
				return err
			}
			var record Record
			if err := json.Unmarshal(data, &record); err != nil {
				return err
			}
			mutate(&record)
			record.UpdatedAt = time.Now().UTC()
			payload, err := json.Marshal(&record)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, payload, s.ttl)
				return nil
			})
			return err
		}, key)
		if err == redis.TxFailedErr {
			continue
		}
		return err
	}
	return fmt.Errorf("job update contention limit reached: %s", jobID)
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}
