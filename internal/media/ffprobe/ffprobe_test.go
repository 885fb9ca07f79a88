package ffprobe

import (
	"context"
	"errors"
	"math"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video"},
			{CodecType: "audio"},
			{CodecType: "audio"},
		},
		Format: Format{Duration: "123.45", Size: "1000"},
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
}

func TestDurationFallsBackToAudioStream(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "audio", Duration: "14.98"},
			{CodecType: "audio", Duration: "15.02"},
		},
	}
	if result.DurationSeconds() != 15.02 {
		t.Fatalf("expected longest audio stream, got %v", result.DurationSeconds())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{Format: Format{Duration: "bad", Size: "-1"}}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
}

func TestProberDurationParsesRunnerOutput(t *testing.T) {
	var gotArgs []string
	prober := New("", func(_ context.Context, name string, args ...string) ([]byte, error) {
		if name != "ffprobe" {
			t.Fatalf("expected default binary, got %s", name)
		}
		gotArgs = args
		return []byte(`{"streams":[{"codec_type":"audio","codec_name":"opus"}],"format":{"duration":"60.000"}}`), nil
	})

	seconds, err := prober.Duration(context.Background(), "/media/song.mp3")
	if err != nil {
		t.Fatalf("duration: %v", err)
	}
	if seconds != 60 {
		t.Fatalf("expected 60s, got %v", seconds)
	}
	if gotArgs[len(gotArgs)-1] != "/media/song.mp3" {
		t.Fatalf("expected path as last arg, got %v", gotArgs)
	}
}

func TestProberDurationRejectsMissingDuration(t *testing.T) {
	prober := New("ffprobe", func(context.Context, string, ...string) ([]byte, error) {
		return []byte(`{"streams":[],"format":{}}`), nil
	})
	if _, err := prober.Duration(context.Background(), "x.mp3"); err == nil {
		t.Fatalf("expected error for missing duration")
	}
}

func TestProberInspectIncludesToolOutputOnFailure(t *testing.T) {
	prober := New("ffprobe", func(context.Context, string, ...string) ([]byte, error) {
		return []byte("x.mp3: No such file or directory"), errors.New("exit status 1")
	})
	_, err := prober.Inspect(context.Background(), "x.mp3")
	if err == nil || !strings.Contains(err.Error(), "No such file") {
		t.Fatalf("expected tool output in error, got %v", err)
	}
}

func TestExecRunnerReturnsWhenChildHoldsPipes(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	started := time.Now()
	// the backgrounded sleep inherits stdout and outlives the killed shell
	_, err := ExecRunner(ctx, "sh", "-c", "sleep 10 & sleep 10")
	if err == nil {
		t.Fatalf("expected the killed command to fail")
	}
	if elapsed := time.Since(started); elapsed > 5*time.Second {
		t.Fatalf("runner waited on orphaned pipes for %s", elapsed)
	}
}
