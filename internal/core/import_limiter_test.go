package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestImportLimiter_AcquireRelease(t *testing.T) {
	limiter := NewImportLimiter(2, time.Second)
	ctx := context.Background()

	releaseA, err := limiter.Acquire(ctx, "assets")
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	releaseB, err := limiter.Acquire(ctx, "assets")
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}

	status := limiter.Status()
	if status.Active != 2 || status.Available != 0 || status.Running["assets"] != 2 {
		t.Errorf("Status = %+v, want 2 active assets runs", status)
	}

	releaseA()
	releaseA() // no-op
	if got := limiter.Status().Active; got != 1 {
		t.Errorf("after one release, Active = %d, want 1", got)
	}

	releaseB()
	status = limiter.Status()
	if status.Active != 0 || status.Available != 2 || status.Running != nil {
		t.Errorf("after release, Status = %+v", status)
	}
}

func TestImportLimiter_RunningByKind(t *testing.T) {
	limiter := NewImportLimiter(3, time.Second)
	ctx := context.Background()

	var releases []func()
	for _, kind := range []string{"assets", "vendors", "assets"} {
		release, err := limiter.Acquire(ctx, kind)
		if err != nil {
			t.Fatalf("Acquire(%s): %v", kind, err)
		}
		releases = append(releases, release)
	}

	got := limiter.Status().Running
	if got["assets"] != 2 || got["vendors"] != 1 || len(got) != 2 {
		t.Errorf("Running = %v, want assets:2 vendors:1", got)
	}

	releases[1]()
	if _, ok := limiter.Status().Running["vendors"]; ok {
		t.Error("vendors still listed after its only run released")
	}
	releases[0]()
	releases[2]()
}

func TestImportLimiter_TimesOutWhenFull(t *testing.T) {
	limiter := NewImportLimiter(1, 50*time.Millisecond)
	ctx := context.Background()

	release, err := limiter.Acquire(ctx, "assets")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	start := time.Now()
	if _, err := limiter.Acquire(ctx, "vendors"); !errors.Is(err, ErrTooManyImports) {
		t.Errorf("expected ErrTooManyImports, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("returned too fast: %v", elapsed)
	}
}

func TestImportLimiter_ContextCancelled(t *testing.T) {
	limiter := NewImportLimiter(1, time.Minute)
	release, err := limiter.Acquire(context.Background(), "assets")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := limiter.Acquire(ctx, "assets"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestImportLimiter_ConcurrentAccess(t *testing.T) {
	const maxConcurrent = 3
	const totalRequests = 10

	limiter := NewImportLimiter(maxConcurrent, time.Second)

	var wg sync.WaitGroup
	var mu sync.Mutex
	maxObserved := 0

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			release, err := limiter.Acquire(context.Background(), "assets")
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			defer release()

			mu.Lock()
			if current := limiter.Status().Active; current > maxObserved {
				maxObserved = current
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)
		}()
	}

	wg.Wait()

	if maxObserved > maxConcurrent {
		t.Errorf("exceeded max concurrent: observed %d, max %d", maxObserved, maxConcurrent)
	}
	if got := limiter.Status().Active; got != 0 {
		t.Errorf("final Active = %d, want 0", got)
	}
}

func TestImportLimiter_WaitForDrain(t *testing.T) {
	limiter := NewImportLimiter(2, time.Second)

	// Nothing running: returns immediately.
	if err := limiter.WaitForDrain(context.Background()); err != nil {
		t.Fatalf("WaitForDrain on idle limiter: %v", err)
	}

	release, err := limiter.Acquire(context.Background(), "assets")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	go func() {
		time.Sleep(30 * time.Millisecond)
		release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := limiter.WaitForDrain(ctx); err != nil {
		t.Errorf("WaitForDrain: %v", err)
	}
}

func TestImportLimiter_WaitForDrainTimeout(t *testing.T) {
	limiter := NewImportLimiter(1, time.Second)
	release, err := limiter.Acquire(context.Background(), "assets")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := limiter.WaitForDrain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestImportLimiter_Defaults(t *testing.T) {
	status := NewImportLimiter(0, 0).Status()

	if status.MaxConcurrent != DefaultMaxConcurrentImports ||
		status.Available != DefaultMaxConcurrentImports || status.Active != 0 {
		t.Errorf("Status = %+v", status)
	}
}
