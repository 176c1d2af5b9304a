package subtitling

import (
	"context"
	"fmt"
	"mime/multipart"
	"strings"
	"time"
	"unicode"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/yourusername/subtitle-forge/internal/config"
	"github.com/yourusername/subtitle-forge/internal/media"
	"github.com/yourusername/subtitle-forge/internal/srt"
	"github.com/yourusername/subtitle-forge/internal/storage"
	"github.com/yourusername/subtitle-forge/internal/transcribe"
)

// mediaTranscoder は ffmpeg 呼び出しを抽象化します（テスト用差し替え口）。
type mediaTranscoder interface {
	ExtractAudio(ctx context.Context, videoPath, audioPath string) error
	BurnSubtitles(ctx context.Context, videoPath, srtPath, outputPath string) error
}

// speechTranscriber は音声の文字起こしを抽象化します。
type speechTranscriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]srt.Segment, error)
}

// Service は字幕生成パイプラインとジョブ成果物の管理を担います。
type Service struct {
	cfg         *config.Config
	store       *storage.Local
	transcoder  mediaTranscoder
	transcriber speechTranscriber
	now         func() time.Time
	afterFunc   func(d time.Duration, f func()) *time.Timer
}

// NewService は Service を初期化し、保存先ディレクトリを用意します。
func NewService(cfg *config.Config) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	store, err := storage.NewLocal(cfg.UploadDir, cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:         cfg,
		store:       store,
		transcoder:  media.NewTranscoder(cfg.FFmpegPath),
		transcriber: transcribe.NewTranscriber(cfg.WhisperPath, cfg.WhisperModelPath, cfg.WhisperLanguage),
		now:         time.Now,
		afterFunc:   time.AfterFunc,
	}, nil
}

// WithTranscoder は ffmpeg アダプターを差し替えます（テスト用）。
func (s *Service) WithTranscoder(t mediaTranscoder) {
	s.transcoder = t
}

// WithTranscriber は文字起こしアダプターを差し替えます（テスト用）。
func (s *Service) WithTranscriber(t speechTranscriber) {
	s.transcriber = t
}

// PrepareJob はアップロードされた動画を検証して保存し、ジョブを発行します。
// 入力不備はジョブを作らずにその場でエラーとして返します。
func (s *Service) PrepareJob(ctx context.Context, file *multipart.FileHeader) (*JobManifest, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if file == nil {
		return nil, newError(CodeInvalidInput, "動画ファイルが指定されていません。", nil)
	}
	if strings.TrimSpace(file.Filename) == "" {
		return nil, newError(CodeInvalidInput, "ファイル名が空です。", nil)
	}
	if s.cfg.MaxFileSize > 0 && file.Size > s.cfg.MaxFileSize {
		return nil, newError(CodeLimitExceeded,
			fmt.Sprintf("動画サイズが上限（%dバイト）を超えています。", s.cfg.MaxFileSize), nil)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := file.Open()
	if err != nil {
		return nil, newError(CodeInvalidInput, "アップロードされた動画を読み取れませんでした。", err)
	}
	defer src.Close()

	jobID := uuid.NewString()
	storedName := jobID + "_" + sanitizeFilename(file.Filename)

	storedPath, written, err := s.store.SaveUpload(src, storedName)
	if err != nil {
		return nil, newError(CodeInternal, "動画の保存に失敗しました。", err)
	}

	detected, err := mimetype.DetectFile(storedPath)
	if err != nil || !strings.HasPrefix(detected.String(), "video/") {
		_ = s.store.RemoveJob(jobID)
		return nil, newError(CodeInvalidInput, "動画ファイルとして認識できませんでした。", err)
	}

	manifest := &JobManifest{
		JobID:        jobID,
		OriginalName: file.Filename,
		StoredName:   storedName,
		Size:         written,
		ContentType:  detected.String(),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.writeManifest(manifest); err != nil {
		_ = s.store.RemoveJob(jobID)
		return nil, newError(CodeInternal, "ジョブマニフェストの保存に失敗しました。", err)
	}

	return manifest, nil
}

// DiscardJob はジョブの成果物と中間ファイルをすべて削除します。
// 既に削除済み・存在しないジョブに対しては何もしません。
func (s *Service) DiscardJob(jobID string) error {
	return s.store.RemoveJob(jobID)
}

// sanitizeFilename はパス区切りや制御文字を取り除いた安全なファイル名を返します。
func sanitizeFilename(name string) string {
	base := name
	if idx := strings.LastIndexAny(base, `/\`); idx >= 0 {
		base = base[idx+1:]
	}

	var b strings.Builder
	for _, r := range base {
		switch {
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	cleaned := strings.Trim(b.String(), "._")
	if cleaned == "" {
		cleaned = "video"
	}
	return cleaned
}
