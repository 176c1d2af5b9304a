package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore はジョブ状態をプロセス内に保持する Store 実装です。
// Redis を用意しないローカル実行とテストで使用します。
// 生のマップは公開せず、すべての操作をミューテックスで直列化します。
type MemoryStore struct {
	mu      sync.RWMutex
	ttl     time.Duration
	records map[string]*Record
	now     func() time.Time
}

// NewMemoryStore は MemoryStore を作成します。
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

// Get はジョブ情報のコピーを返します。未知のIDでは (nil, nil) を返します。
func (s *MemoryStore) Get(ctx context.Context, jobID string) (*Record, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID is required")
	}

	s.mu.RLock()
	record, ok := s.records[jobID]
	if !ok {
		s.mu.RUnlock()
		return nil, nil
	}
	if !record.ExpiresAt.IsZero() && s.now().After(record.ExpiresAt) {
		s.mu.RUnlock()
		// 期限切れレコードは遅延削除する。ロック切り替えの間に上書きされた場合は残す
		s.mu.Lock()
		if cur, ok := s.records[jobID]; ok && !cur.ExpiresAt.IsZero() && s.now().After(cur.ExpiresAt) {
			delete(s.records, jobID)
		}
		s.mu.Unlock()
		return nil, nil
	}
	snapshot := *record
	s.mu.RUnlock()
	return &snapshot, nil
}

// Upsert はジョブ情報を保存します（存在しない場合は作成）。
func (s *MemoryStore) Upsert(ctx context.Context, record *Record) error {
	if record == nil {
		return fmt.Errorf("record is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	stored := *record
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	if stored.ExpiresAt.IsZero() && s.ttl > 0 {
		stored.ExpiresAt = stored.CreatedAt.Add(s.ttl)
	}
	s.records[stored.JobID] = &stored
	return nil
}

// UpdateProgress は進捗を更新します。
func (s *MemoryStore) UpdateProgress(ctx context.Context, jobID string, progress ProgressInfo) error {
	return s.updatePartial(jobID, func(record *Record) {
		record.Progress = progress
	})
}

// MarkCompleted はジョブ完了時の成果物パスを保存します。
func (s *MemoryStore) MarkCompleted(ctx context.Context, jobID, subtitlePath, videoPath string) error {
	return s.updatePartial(jobID, func(record *Record) {
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
func (s *MemoryStore) MarkFailed(ctx context.Context, jobID string, errInfo *ErrorInfo) error {
	return s.updatePartial(jobID, func(record *Record) {
		record.Status = StatusFailed
		if errInfo != nil {
			record.Error = errInfo
			record.Progress.Message = errInfo.Message
		}
	})
}

// Delete はジョブ情報を削除します。存在しないIDに対しては何もしません。
func (s *MemoryStore) Delete(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, jobID)
	return nil
}

func (s *MemoryStore) updatePartial(jobID string, mutate func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	mutate(record)
	record.UpdatedAt = s.now().UTC()
	return nil
}
