package jobs

import "time"

// Status はジョブの実行状態を表します。
// 登録直後から processing で、completed / error のどちらかで終了します。
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "error"
)

// Terminal は終了状態かどうかを返します。
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ProgressInfo は進捗の補足情報を表します。
// Percent は同一ジョブ内で単調非減少です。
type ProgressInfo struct {
	Percent int    `json:"percent"`
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorInfo はジョブ失敗時のエラー情報を保持します。
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Record はジョブの現在状態を表します。
// 更新はそのジョブのワーカーだけが行い、読み手は一貫したスナップショットを受け取ります。
type Record struct {
	JobID        string       `json:"jobId"`
	Filename     string       `json:"filename,omitempty"`
	Status       Status       `json:"status"`
	Progress     ProgressInfo `json:"progress"`
	SubtitlePath string       `json:"subtitlePath,omitempty"`
	VideoPath    string       `json:"videoPath,omitempty"`
	Error        *ErrorInfo   `json:"error,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	ExpiresAt    time.Time    `json:"expiresAt"`
}
