// Package subtitling は動画から字幕を生成するパイプラインを提供します。
package subtitling

import "fmt"

// エラーコード。ハンドラー側で HTTP ステータスへ対応付けます。
const (
	CodeInvalidInput     = "INVALID_INPUT"
	CodeLimitExceeded    = "LIMIT_EXCEEDED"
	CodeJobNotFound      = "JOB_NOT_FOUND"
	CodeResultNotReady   = "RESULT_NOT_READY"
	CodeExtractFailed    = "AUDIO_EXTRACTION_FAILED"
	CodeTranscribeFailed = "TRANSCRIPTION_FAILED"
	CodeSubtitleFailed   = "SUBTITLE_WRITE_FAILED"
	CodeBurnInFailed     = "SUBTITLE_BURNIN_FAILED"
	CodeInternal         = "INTERNAL_ERROR"
)

// Error はコード付きのサービスエラーです。
type Error struct {
	Code    string
	Message string
	Err     error
}

// Error は人間可読なメッセージを返します。
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap は元のエラーを返します。
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}
