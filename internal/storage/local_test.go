package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	tempDir := t.TempDir()
	local, err := NewLocal(filepath.Join(tempDir, "uploads"), filepath.Join(tempDir, "outputs"))
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	return local
}

func TestNewLocalCreatesDirectories(t *testing.T) {
	tempDir := t.TempDir()
	uploadDir := filepath.Join(tempDir, "a", "uploads")
	outputDir := filepath.Join(tempDir, "b", "outputs")

	if _, err := NewLocal(uploadDir, outputDir); err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	for _, dir := range []string{uploadDir, outputDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("directory %s not created: %v", dir, err)
		}
	}
}

func TestSaveUpload(t *testing.T) {
	local := newTestLocal(t)
	content := []byte("fake video content")

	path, written, err := local.SaveUpload(bytes.NewReader(content), "job-1_movie.mp4")
	if err != nil {
		t.Fatalf("SaveUpload failed: %v", err)
	}
	if written != int64(len(content)) {
		t.Errorf("written = %d, want %d", written, len(content))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("saved file missing: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Errorf("saved content mismatch: %q", data)
	}
}

func TestRemoveJobDeletesOnlyMatchingFiles(t *testing.T) {
	local := newTestLocal(t)

	seed := map[string]string{
		local.UploadPath("job-1_movie.mp4"):          "video",
		local.UploadPath("job-1_audio.wav"):          "audio",
		local.UploadPath("job-2_movie.mp4"):          "other video",
		local.OutputPath("job-1_subtitles.srt"):      "subs",
		local.OutputPath("job-1_with_subtitles.mp4"): "burned",
		local.OutputPath("job-2_subtitles.srt"):      "other subs",
	}
	for path, content := range seed {
		if err := os.WriteFile(path, []byte(content), 0o640); err != nil {
			t.Fatalf("failed to seed %s: %v", path, err)
		}
	}

	if err := local.RemoveJob("job-1"); err != nil {
		t.Fatalf("RemoveJob failed: %v", err)
	}

	for path := range seed {
		_, err := os.Stat(path)
		isJob1 := filepath.Base(path)[:6] == "job-1_"
		if isJob1 && !os.IsNotExist(err) {
			t.Errorf("%s should be removed, stat err=%v", path, err)
		}
		if !isJob1 && err != nil {
			t.Errorf("%s should survive, stat err=%v", path, err)
		}
	}
}

func TestRemoveJobIdempotent(t *testing.T) {
	local := newTestLocal(t)

	if err := local.RemoveJob("never-existed"); err != nil {
		t.Fatalf("RemoveJob on unknown job should be a no-op, got %v", err)
	}
	if err := local.RemoveJob(""); err != nil {
		t.Fatalf("RemoveJob with empty id should be a no-op, got %v", err)
	}
}
