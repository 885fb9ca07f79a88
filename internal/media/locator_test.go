package media

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"melody-quiz-service/internal/domain"
)

type stubQuestions struct {
	questions map[string]domain.Question
	err       error
	calls     int
}

func (s *stubQuestions) GetQuestion(_ context.Context, id string) (domain.Question, error) {
	s.calls++
	if s.err != nil {
		return domain.Question{}, s.err
	}
	q, ok := s.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrNotFound
	}
	return q, nil
}

type countingProber struct {
	seconds float64
	err     error
	calls   int
}

func (p *countingProber) Duration(context.Context, string) (float64, error) {
	p.calls++
	return p.seconds, p.err
}

func TestResolveCachesReference(t *testing.T) {
	source := &stubQuestions{questions: map[string]domain.Question{
		"q1": {ID: "q1", MediaURI: "/media/numb.mp3", DurationSeconds: 185},
	}}
	locator := NewLocator(source, nil, time.Minute, nil)

	for i := 0; i < 2; i++ {
		ref, err := locator.Resolve(context.Background(), "q1")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if ref.Locator != "/media/numb.mp3" || ref.DurationSeconds != 185 {
			t.Fatalf("unexpected ref %+v", ref)
		}
	}
	if source.calls != 1 {
		t.Fatalf("expected one catalog lookup, got %d", source.calls)
	}
}

func TestResolveExpiresCache(t *testing.T) {
	source := &stubQuestions{questions: map[string]domain.Question{
		"q1": {ID: "q1", MediaURI: "/media/numb.mp3", DurationSeconds: 185},
	}}
	locator := NewLocator(source, nil, time.Minute, nil)
	now := time.Now()
	locator.clock = func() time.Time { return now }

	if _, err := locator.Resolve(context.Background(), "q1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := locator.Resolve(context.Background(), "q1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if source.calls != 2 {
		t.Fatalf("expected lookup after expiry, got %d calls", source.calls)
	}
}

func TestResolveProbesMissingDuration(t *testing.T) {
	source := &stubQuestions{questions: map[string]domain.Question{
		"q1": {ID: "q1", MediaURI: "https://cdn.example/numb.mp3"},
	}}
	prober := &countingProber{seconds: 187.5}
	locator := NewLocator(source, prober, time.Minute, nil)

	ref, err := locator.Resolve(context.Background(), "q1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if ref.DurationSeconds != 187.5 || prober.calls != 1 {
		t.Fatalf("expected probed duration, got %+v after %d probes", ref, prober.calls)
	}
}

func TestResolveErrors(t *testing.T) {
	ctx := context.Background()

	missing := NewLocator(&stubQuestions{questions: map[string]domain.Question{}}, nil, time.Minute, nil)
	if _, err := missing.Resolve(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	noMedia := NewLocator(&stubQuestions{questions: map[string]domain.Question{"q1": {ID: "q1"}}}, nil, time.Minute, nil)
	if _, err := noMedia.Resolve(ctx, "q1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for question without media, got %v", err)
	}

	down := NewLocator(&stubQuestions{err: errors.New("dial tcp: connection refused")}, nil, time.Minute, nil)
	if _, err := down.Resolve(ctx, "q1"); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	probeFails := NewLocator(&stubQuestions{questions: map[string]domain.Question{
		"q1": {ID: "q1", MediaURI: "/media/x.mp3"},
	}}, &countingProber{err: errors.New("exit status 1")}, time.Minute, nil)
	if _, err := probeFails.Resolve(ctx, "q1"); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable when probing fails, got %v", err)
	}
}

// gatedProber blocks each probe until release is closed or its context ends.
type gatedProber struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (p *gatedProber) Duration(ctx context.Context, _ string) (float64, error) {
	p.calls.Add(1)
	p.started <- struct{}{}
	select {
	case <-p.release:
		return 200, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func TestResolveTimesOutStalledProbe(t *testing.T) {
	source := &stubQuestions{questions: map[string]domain.Question{
		"q1": {ID: "q1", MediaURI: "https://cdn.example/numb.mp3"},
	}}
	prober := &gatedProber{started: make(chan struct{}, 1), release: make(chan struct{})}
	locator := NewLocator(source, prober, time.Minute, nil, WithLookupTimeout(50*time.Millisecond))

	started := time.Now()
	_, err := locator.Resolve(context.Background(), "q1")
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(started); elapsed > 2*time.Second {
		t.Fatalf("lookup ignored its bound, took %s", elapsed)
	}
}

func TestResolveSharedLookupSurvivesCallerCancel(t *testing.T) {
	source := &stubQuestions{questions: map[string]domain.Question{
		"q1": {ID: "q1", MediaURI: "/media/song.mp3"},
	}}
	prober := &gatedProber{started: make(chan struct{}, 2), release: make(chan struct{})}
	locator := NewLocator(source, prober, time.Minute, nil)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := locator.Resolve(ctxA, "q1")
		errA <- err
	}()
	<-prober.started

	type outcome struct {
		ref domain.MediaReference
		err error
	}
	resB := make(chan outcome, 1)
	go func() {
		ref, err := locator.Resolve(context.Background(), "q1")
		resB <- outcome{ref, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		if err == nil {
			t.Fatalf("expected the cancelled caller to stop waiting")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("cancelled caller kept waiting")
	}

	close(prober.release)
	select {
	case got := <-resB:
		if got.err != nil || got.ref.DurationSeconds != 200 {
			t.Fatalf("other caller should still resolve, got %+v %v", got.ref, got.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("other caller never resolved")
	}
	if n := prober.calls.Load(); n != 1 {
		t.Fatalf("expected one shared probe, got %d", n)
	}
}
