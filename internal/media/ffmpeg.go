// Package media は ffmpeg による音声抽出と字幕焼き込みを提供します。
package media

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Transcoder は ffmpeg の外部プロセス呼び出しをまとめた構造体です。
type Transcoder struct {
	ffmpegPath    string
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewTranscoder は Transcoder を作成します。ffmpegPath が空の場合は PATH 上の ffmpeg を使用します。
func NewTranscoder(ffmpegPath string) *Transcoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Transcoder{ffmpegPath: ffmpegPath}
}

// WithCommandRunner はコマンド実行処理を差し替えます（テスト用）。
func (t *Transcoder) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	t.commandRunner = runner
}

// ExtractAudio は動画からモノラル 16kHz の PCM WAV を抽出します。
// 出力先に既存ファイルがある場合は上書きします。
func (t *Transcoder) ExtractAudio(ctx context.Context, videoPath, audioPath string) error {
	args := buildExtractArgs(videoPath, audioPath)
	if err := t.run(ctx, args...); err != nil {
		return fmt.Errorf("ffmpeg audio extraction: %w", err)
	}
	return nil
}

// BurnSubtitles は SRT 字幕を映像フレームに焼き込んだコピーを生成します。
// 字幕ファイルのパスはフィルター式用にエスケープして渡します。
func (t *Transcoder) BurnSubtitles(ctx context.Context, videoPath, srtPath, outputPath string) error {
	args := buildBurnArgs(videoPath, srtPath, outputPath)
	if err := t.run(ctx, args...); err != nil {
		return fmt.Errorf("ffmpeg subtitle burn-in: %w", err)
	}
	return nil
}

// run は ffmpeg を1回実行し、失敗時は診断出力をエラーに含めます。
func (t *Transcoder) run(ctx context.Context, args ...string) error {
	if t.commandRunner != nil {
		return t.commandRunner(ctx, t.ffmpegPath, args...)
	}

	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// buildExtractArgs は音声抽出用の ffmpeg 引数を組み立てます。
func buildExtractArgs(videoPath, audioPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", videoPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		audioPath,
	}
}

// buildBurnArgs は字幕焼き込み用の ffmpeg 引数を組み立てます。
func buildBurnArgs(videoPath, srtPath, outputPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", videoPath,
		"-vf", "subtitles=" + escapeFilterPath(srtPath),
		"-c:v", "libx264",
		"-c:a", "aac",
		outputPath,
	}
}

// escapeFilterPath はフィルター式に埋め込むパスの特殊文字をエスケープします。
// フィルター構文では \ : ' , ; [ ] が区切り文字として解釈されるため、
// 生のパスをそのまま連結するとパス注入や構文破壊の原因になります。
func escapeFilterPath(path string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`:`, `\:`,
		`'`, `\'`,
		`,`, `\,`,
		`;`, `\;`,
		`[`, `\[`,
		`]`, `\]`,
	)
	return replacer.Replace(path)
}
