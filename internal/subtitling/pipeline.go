package subtitling

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/yourusername/subtitle-forge/internal/srt"
)

const (
	audioSuffix    = "_audio.wav"
	subtitleSuffix = "_subtitles.srt"
	videoSuffix    = "_with_subtitles.mp4"

	defaultCleanupMin = 60
)

// ProgressReporter は進捗更新用コールバックです。
type ProgressReporter func(stage, message string, percent int)

func reportProgress(cb ProgressReporter, stage, message string, percent int) {
	if cb == nil {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	cb(stage, message, percent)
}

// Result はパイプライン完了時の成果物を表します。
type Result struct {
	JobID        string `json:"jobId"`
	OriginalName string `json:"originalName"`
	SubtitlePath string `json:"subtitlePath"`
	VideoPath    string `json:"videoPath"`
}

// RunJob はジョブIDに対応する字幕生成パイプラインを実行します。
// 各ステップは順番に実行され、失敗したステップでエラーを返して停止します。
// 進捗とメッセージは各ステップの実行前に更新されます。
func (s *Service) RunJob(ctx context.Context, jobID string, reporter ProgressReporter) (*Result, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID is required")
	}

	manifest, err := s.loadManifest(jobID)
	if err != nil {
		return nil, newError(CodeJobNotFound, "ジョブの入力情報が見つかりませんでした。", err)
	}

	// 成否に関わらず、期限が切れたらアップロード・中間・成果物をまとめて回収する
	defer s.scheduleCleanup(jobID)

	videoPath := s.store.UploadPath(manifest.StoredName)
	audioPath := s.store.UploadPath(jobID + audioSuffix)
	subtitlePath := s.store.OutputPath(jobID + subtitleSuffix)
	outputVideoPath := s.store.OutputPath(jobID + videoSuffix)

	reportProgress(reporter, "extract", "Extracting audio from video...", 20)
	if err := s.transcoder.ExtractAudio(ctx, videoPath, audioPath); err != nil {
		return nil, newError(CodeExtractFailed,
			fmt.Sprintf("音声の抽出に失敗しました: %v", err), err)
	}

	reportProgress(reporter, "transcribe", "Generating subtitles...", 40)
	segments, err := s.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return nil, newError(CodeTranscribeFailed,
			fmt.Sprintf("文字起こしに失敗しました: %v", err), err)
	}

	reportProgress(reporter, "subtitle", "Saving subtitles...", 60)
	if err := srt.WriteFile(subtitlePath, segments); err != nil {
		return nil, newError(CodeSubtitleFailed,
			fmt.Sprintf("字幕ファイルの保存に失敗しました: %v", err), err)
	}

	reportProgress(reporter, "burnin", "Embedding subtitles into video...", 80)
	if err := s.transcoder.BurnSubtitles(ctx, videoPath, subtitlePath, outputVideoPath); err != nil {
		// 書きかけの動画を成果物として見せない
		_ = os.Remove(outputVideoPath)
		return nil, newError(CodeBurnInFailed,
			fmt.Sprintf("字幕の焼き込みに失敗しました: %v", err), err)
	}

	// 中間音声の削除はベストエフォート。失敗してもジョブの結果は変えない
	_ = os.Remove(audioPath)

	return &Result{
		JobID:        jobID,
		OriginalName: manifest.OriginalName,
		SubtitlePath: subtitlePath,
		VideoPath:    outputVideoPath,
	}, nil
}

// scheduleCleanup は有効期限切れの成果物をまとめて削除します。
func (s *Service) scheduleCleanup(jobID string) {
	expireMinutes := s.cfg.JobExpireMinutes
	if expireMinutes <= 0 {
		expireMinutes = defaultCleanupMin
	}
	s.afterFunc(time.Duration(expireMinutes)*time.Minute, func() {
		_ = s.store.RemoveJob(jobID)
	})
}
