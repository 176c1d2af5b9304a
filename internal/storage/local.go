// Package storage はジョブ成果物のローカルファイル保存を提供します。
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Local はアップロード用と出力用の2つのディレクトリを管理します。
// ファイル名はすべてジョブIDを接頭辞として衝突を避けます。
type Local struct {
	uploadDir string
	outputDir string
}

// NewLocal は両ディレクトリを作成して Local を返します。
func NewLocal(uploadDir, outputDir string) (*Local, error) {
	for _, dir := range []string{uploadDir, outputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return &Local{uploadDir: uploadDir, outputDir: outputDir}, nil
}

// UploadPath はアップロード側ディレクトリ内のパスを返します。
func (l *Local) UploadPath(name string) string {
	return filepath.Join(l.uploadDir, name)
}

// OutputPath は出力側ディレクトリ内のパスを返します。
func (l *Local) OutputPath(name string) string {
	return filepath.Join(l.outputDir, name)
}

// SaveUpload は読み取った内容をアップロード側ディレクトリに保存し、
// 保存先のパスと書き込んだバイト数を返します。
func (l *Local) SaveUpload(src io.Reader, name string) (string, int64, error) {
	path := l.UploadPath(name)
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create upload file: %w", err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, src)
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("failed to store upload: %w", err)
	}
	return path, written, nil
}

// RemoveJob はジョブIDを接頭辞に持つファイルを両ディレクトリから削除します。
// 存在しないジョブに対しては何もしません（冪等）。
func (l *Local) RemoveJob(jobID string) error {
	if strings.TrimSpace(jobID) == "" {
		return nil
	}

	var firstErr error
	for _, dir := range []string{l.uploadDir, l.outputDir} {
		matches, err := filepath.Glob(filepath.Join(dir, jobID+"_*"))
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, path := range matches {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
