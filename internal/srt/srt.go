// Package srt は字幕セグメントの SRT 形式へのシリアライズを提供します。
package srt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Segment は文字起こし結果の1区間を表します。
// Start/End は秒単位（小数）で、Start < End を前提とします。
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// FormatTimestamp は秒数を SRT 形式のタイムスタンプ（HH:MM:SS,mmm）に変換します。
// 整数秒は切り捨て、ミリ秒は小数部から求めます。時間の上限はありません。
func FormatTimestamp(seconds float64) string {
	whole := int64(seconds)
	millis := int64((seconds - float64(whole)) * 1000)

	secs := whole % 60
	mins := (whole / 60) % 60
	hours := whole / 3600

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, mins, secs, millis)
}

// Write はセグメント列を SRT 形式で書き出します。
// 連番は入力位置から1始まりで振り直し、テキストは前後の空白を除去します。
// 空のセグメント列からは何も出力しません。
func Write(w io.Writer, segments []Segment) error {
	bw := bufio.NewWriter(w)
	for i, seg := range segments {
		if _, err := fmt.Fprintf(
			bw,
			"%d\n%s --> %s\n%s\n\n",
			i+1,
			FormatTimestamp(seg.Start),
			FormatTimestamp(seg.End),
			strings.TrimSpace(seg.Text),
		); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile はセグメント列を UTF-8 の SRT ファイルとして保存します。
func WriteFile(path string, segments []Segment) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("failed to open srt file: %w", err)
	}
	defer file.Close()

	if err := Write(file, segments); err != nil {
		return fmt.Errorf("failed to write srt file: %w", err)
	}
	return nil
}
