package media

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestBuildExtractArgs(t *testing.T) {
	args := buildExtractArgs("/in/video.mp4", "/tmp/audio.wav")

	joined := strings.Join(args, " ")
	for _, want := range []string{"-ac 1", "-ar 16000", "-c:a pcm_s16le", "-vn", "-y"} {
		if !strings.Contains(joined, want) {
			t.Errorf("extract args missing %q: %v", want, args)
		}
	}
	if args[len(args)-1] != "/tmp/audio.wav" {
		t.Errorf("output path must be the last argument: %v", args)
	}
}

func TestBuildBurnArgs(t *testing.T) {
	args := buildBurnArgs("/in/video.mp4", "/out/subs.srt", "/out/burned.mp4")

	var filter string
	for i, arg := range args {
		if arg == "-vf" && i+1 < len(args) {
			filter = args[i+1]
		}
	}
	if filter != `subtitles=/out/subs.srt` {
		t.Errorf("unexpected filter expression: %q", filter)
	}

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-c:v libx264") || !strings.Contains(joined, "-c:a aac") {
		t.Errorf("burn args missing codec pair: %v", args)
	}
}

func TestEscapeFilterPath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/plain/path.srt", "/plain/path.srt"},
		{"C:\\subs\\out.srt", `C\:\\subs\\out.srt`},
		{"/out/it's.srt", `/out/it\'s.srt`},
		{"/out/a,b;c.srt", `/out/a\,b\;c.srt`},
		{"/out/[clip].srt", `/out/\[clip\].srt`},
	}
	for _, tc := range cases {
		if got := escapeFilterPath(tc.in); got != tc.want {
			t.Errorf("escapeFilterPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExtractAudioUsesRunner(t *testing.T) {
	transcoder := NewTranscoder("ffmpeg")

	var gotName string
	var gotArgs []string
	transcoder.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		gotName = name
		gotArgs = args
		return nil
	})

	if err := transcoder.ExtractAudio(context.Background(), "in.mp4", "out.wav"); err != nil {
		t.Fatalf("ExtractAudio returned error: %v", err)
	}
	if gotName != "ffmpeg" {
		t.Errorf("unexpected command name: %q", gotName)
	}
	if len(gotArgs) == 0 || gotArgs[len(gotArgs)-1] != "out.wav" {
		t.Errorf("unexpected args: %v", gotArgs)
	}
}

func TestBurnSubtitlesPropagatesDiagnostics(t *testing.T) {
	transcoder := NewTranscoder("")
	transcoder.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		return errors.New("exit status 1: Unable to open subtitles")
	})

	err := transcoder.BurnSubtitles(context.Background(), "in.mp4", "subs.srt", "out.mp4")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Unable to open subtitles") {
		t.Errorf("diagnostics not propagated: %v", err)
	}
	if !strings.Contains(err.Error(), "burn-in") {
		t.Errorf("error should identify the burn-in step: %v", err)
	}
}
