package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/yourusername/subtitle-forge/internal/subtitling"
)

type fakePipeline struct {
	mu     sync.Mutex
	stages []string
	run    func(ctx context.Context, jobID string, reporter subtitling.ProgressReporter) (*subtitling.Result, error)
}

func (f *fakePipeline) RunJob(ctx context.Context, jobID string, reporter subtitling.ProgressReporter) (*subtitling.Result, error) {
	wrapped := func(stage, message string, percent int) {
		f.mu.Lock()
		f.stages = append(f.stages, stage)
		f.mu.Unlock()
		reporter(stage, message, percent)
	}
	return f.run(ctx, jobID, wrapped)
}

func waitForStatus(t *testing.T, store Store, jobID string, want Status) *Record {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		record, err := store.Get(context.Background(), jobID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if record != nil && record.Status == want {
			return record
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %q", jobID, want)
	return nil
}

func TestLocalRunnerSuccess(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	pipeline := &fakePipeline{
		run: func(ctx context.Context, jobID string, reporter subtitling.ProgressReporter) (*subtitling.Result, error) {
			reporter("extract", "Extracting audio from video...", 20)
			reporter("transcribe", "Generating subtitles...", 40)
			return &subtitling.Result{
				JobID:        jobID,
				SubtitlePath: "/out/job-1_subtitles.srt",
				VideoPath:    "/out/job-1_with_subtitles.mp4",
			}, nil
		},
	}
	runner := NewLocalRunner(pipeline, store, nil)

	if err := runner.Schedule(context.Background(), "job-1", "movie.mp4"); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	record := waitForStatus(t, store, "job-1", StatusCompleted)
	if record.SubtitlePath != "/out/job-1_subtitles.srt" {
		t.Errorf("SubtitlePath = %q", record.SubtitlePath)
	}
	if record.VideoPath != "/out/job-1_with_subtitles.mp4" {
		t.Errorf("VideoPath = %q", record.VideoPath)
	}
	if record.Progress.Percent != 100 {
		t.Errorf("Percent = %d, want 100", record.Progress.Percent)
	}
}

func TestLocalRunnerRecordVisibleBeforeWorkerRuns(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	release := make(chan struct{})
	pipeline := &fakePipeline{
		run: func(ctx context.Context, jobID string, reporter subtitling.ProgressReporter) (*subtitling.Result, error) {
			<-release
			return &subtitling.Result{JobID: jobID}, nil
		},
	}
	runner := NewLocalRunner(pipeline, store, nil)

	if err := runner.Schedule(context.Background(), "job-1", "movie.mp4"); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	// ワーカーがブロック中でも、投入直後から processing / 0% が見える
	record, err := store.Get(context.Background(), "job-1")
	if err != nil || record == nil {
		t.Fatalf("record should exist immediately after Schedule: %v", err)
	}
	if record.Status != StatusProcessing || record.Progress.Percent != 0 {
		t.Errorf("initial record = %q/%d, want processing/0", record.Status, record.Progress.Percent)
	}

	close(release)
	waitForStatus(t, store, "job-1", StatusCompleted)
}

func TestLocalRunnerPipelineError(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	pipeline := &fakePipeline{
		run: func(ctx context.Context, jobID string, reporter subtitling.ProgressReporter) (*subtitling.Result, error) {
			return nil, &subtitling.Error{
				Code:    subtitling.CodeTranscribeFailed,
				Message: "音声の文字起こしに失敗しました",
			}
		},
	}
	runner := NewLocalRunner(pipeline, store, nil)

	if err := runner.Schedule(context.Background(), "job-1", "movie.mp4"); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	record := waitForStatus(t, store, "job-1", StatusFailed)
	if record.Error == nil || record.Error.Code != subtitling.CodeTranscribeFailed {
		t.Errorf("Error = %+v, want code %s", record.Error, subtitling.CodeTranscribeFailed)
	}
}

func TestLocalRunnerPanicRecovery(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	pipeline := &fakePipeline{
		run: func(ctx context.Context, jobID string, reporter subtitling.ProgressReporter) (*subtitling.Result, error) {
			panic("boom")
		},
	}
	runner := NewLocalRunner(pipeline, store, nil)

	if err := runner.Schedule(context.Background(), "job-1", "movie.mp4"); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	record := waitForStatus(t, store, "job-1", StatusFailed)
	if record.Error == nil || record.Error.Code != subtitling.CodeInternal {
		t.Errorf("Error = %+v, want code %s", record.Error, subtitling.CodeInternal)
	}
}

func TestLocalRunnerResetDuringRun(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	started := make(chan struct{})
	release := make(chan struct{})
	pipeline := &fakePipeline{
		run: func(ctx context.Context, jobID string, reporter subtitling.ProgressReporter) (*subtitling.Result, error) {
			close(started)
			<-release
			return &subtitling.Result{JobID: jobID, SubtitlePath: "/out/s.srt", VideoPath: "/out/v.mp4"}, nil
		},
	}
	runner := NewLocalRunner(pipeline, store, nil)

	if err := runner.Schedule(context.Background(), "job-1", "movie.mp4"); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	<-started

	// 実行中のリセット。完了時の書き込みは無視され、レコードは復活しない
	if err := store.Delete(context.Background(), "job-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := runner.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	record, err := store.Get(context.Background(), "job-1")
	if err != nil || record != nil {
		t.Fatalf("reset job should stay deleted, got (%+v, %v)", record, err)
	}
}

func TestLocalRunnerConcurrentJobs(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	pipeline := &fakePipeline{
		run: func(ctx context.Context, jobID string, reporter subtitling.ProgressReporter) (*subtitling.Result, error) {
			reporter("extract", "Extracting audio from video...", 20)
			return &subtitling.Result{JobID: jobID, SubtitlePath: "/out/" + jobID + ".srt"}, nil
		},
	}
	runner := NewLocalRunner(pipeline, store, nil)

	ids := []string{"job-a", "job-b", "job-c", "job-d"}
	for _, id := range ids {
		if err := runner.Schedule(context.Background(), id, id+".mp4"); err != nil {
			t.Fatalf("Schedule(%s) failed: %v", id, err)
		}
	}
	for _, id := range ids {
		record := waitForStatus(t, store, id, StatusCompleted)
		if record.SubtitlePath != "/out/"+id+".srt" {
			t.Errorf("job %s got wrong subtitle path %q", id, record.SubtitlePath)
		}
	}
}
