// Package transcribe は whisper.cpp CLI による音声の文字起こしを提供します。
package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/yourusername/subtitle-forge/internal/srt"
)

// Transcriber は外部の whisper.cpp プロセスを呼び出して
// タイムスタンプ付きセグメント列を取得します。
type Transcriber struct {
	whisperPath   string
	modelPath     string
	language      string
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewTranscriber は Transcriber を作成します。
// whisperPath が空の場合は PATH 上の whisper-cli を使用します。
func NewTranscriber(whisperPath, modelPath, language string) *Transcriber {
	if whisperPath == "" {
		whisperPath = "whisper-cli"
	}
	return &Transcriber{
		whisperPath: whisperPath,
		modelPath:   modelPath,
		language:    language,
	}
}

// WithCommandRunner はコマンド実行処理を差し替えます（テスト用）。
func (t *Transcriber) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	t.commandRunner = runner
}

// Transcribe はモノラル 16kHz の WAV ファイルを文字起こしし、
// 開始時刻順のセグメント列を返します。リトライは行いません。
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) ([]srt.Segment, error) {
	if strings.TrimSpace(audioPath) == "" {
		return nil, fmt.Errorf("audio path is required")
	}
	if _, err := os.Stat(audioPath); err != nil {
		return nil, fmt.Errorf("cannot access audio file: %w", err)
	}
	if t.modelPath == "" {
		return nil, fmt.Errorf("whisper model path is not configured")
	}

	// whisper.cpp は -of で指定したベース名に .json を付けて出力する
	outputBase := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))
	args := buildWhisperArgs(t.modelPath, audioPath, outputBase, t.language)

	if err := t.run(ctx, args...); err != nil {
		return nil, fmt.Errorf("whisper transcription: %w", err)
	}

	jsonPath := outputBase + ".json"
	defer os.Remove(jsonPath)

	segments, err := loadSegments(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("whisper transcription: %w", err)
	}
	return segments, nil
}

func (t *Transcriber) run(ctx context.Context, args ...string) error {
	if t.commandRunner != nil {
		return t.commandRunner(ctx, t.whisperPath, args...)
	}

	cmd := exec.CommandContext(ctx, t.whisperPath, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// buildWhisperArgs は JSON 出力付きの whisper.cpp 引数を組み立てます。
func buildWhisperArgs(modelPath, audioPath, outputBase, language string) []string {
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-of", outputBase,
		"-oj",
	}
	if lang := normalizeLanguage(language); lang != "" {
		args = append(args, "-l", lang)
	}
	return args
}

// normalizeLanguage は "auto" と空文字を言語指定なしとして扱います。
func normalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}

// whisperPayload は whisper.cpp の JSON 出力のうち必要な部分です。
// offsets はミリ秒単位です。
type whisperPayload struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// loadSegments は whisper.cpp の JSON 出力をセグメント列に変換します。
// モデル自身の出力順を信頼し、並べ替えは行いません。
func loadSegments(jsonPath string) ([]srt.Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read whisper output: %w", err)
	}

	var payload whisperPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}

	segments := make([]srt.Segment, 0, len(payload.Transcription))
	for _, entry := range payload.Transcription {
		segments = append(segments, srt.Segment{
			Start: float64(entry.Offsets.From) / 1000,
			End:   float64(entry.Offsets.To) / 1000,
			Text:  entry.Text,
		})
	}
	return segments, nil
}
