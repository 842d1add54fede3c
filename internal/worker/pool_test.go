package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MeKo-Tech/colorboost/internal/adjust"
	"github.com/MeKo-Tech/colorboost/internal/intensity"
)

// mockProcessor simulates image processing for testing
type mockProcessor struct {
	delay     time.Duration
	failFiles map[string]bool // inputs that should fail
	callCount atomic.Int32
}

func (m *mockProcessor) Process(ctx context.Context, task Task) (string, error) {
	m.callCount.Add(1)

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(m.delay):
	}

	if m.failFiles != nil && m.failFiles[task.Input] {
		return "", errors.New("simulated failure")
	}

	return filepath.Join("/tmp/out", filepath.Base(task.Input)), nil
}

func imageTasks(n int) []Task {
	tasks := make([]Task, n)
	for i := range tasks {
		tasks[i] = Task{Input: fmt.Sprintf("in/img%03d.png", i)}
	}
	return tasks
}

func TestPool_BasicExecution(t *testing.T) {
	proc := &mockProcessor{delay: 10 * time.Millisecond}

	pool := New(Config{
		Workers:   2,
		Processor: proc,
	})

	tasks := imageTasks(3)
	results := pool.Run(context.Background(), tasks)

	if len(results) != len(tasks) {
		t.Errorf("Expected %d results, got %d", len(tasks), len(results))
	}

	for _, r := range results {
		if r.Err != nil {
			t.Errorf("Unexpected error for %s: %v", r.Task.Input, r.Err)
		}
		if r.Path == "" {
			t.Errorf("Expected path for %s, got empty", r.Task.Input)
		}
	}

	if proc.callCount.Load() != int32(len(tasks)) {
		t.Errorf("Expected %d processor calls, got %d", len(tasks), proc.callCount.Load())
	}
}

func TestPool_Parallelism(t *testing.T) {
	proc := &mockProcessor{delay: 50 * time.Millisecond}

	pool := New(Config{
		Workers:   4,
		Processor: proc,
	})

	tasks := imageTasks(8)

	start := time.Now()
	results := pool.Run(context.Background(), tasks)
	elapsed := time.Since(start)

	// With 4 workers and 8 tasks at 50ms each, should take ~100ms (2 batches)
	maxExpected := 200 * time.Millisecond
	if elapsed > maxExpected {
		t.Errorf("Expected parallel execution in ~100ms, took %v", elapsed)
	}

	if len(results) != len(tasks) {
		t.Errorf("Expected %d results, got %d", len(tasks), len(results))
	}

	t.Logf("Processed %d tasks with %d workers in %v", len(tasks), 4, elapsed)
}

func TestPool_ErrorHandling(t *testing.T) {
	failFile := "in/img001.png"
	proc := &mockProcessor{
		delay:     10 * time.Millisecond,
		failFiles: map[string]bool{failFile: true},
	}

	pool := New(Config{
		Workers:   2,
		Processor: proc,
	})

	tasks := imageTasks(3)
	results := pool.Run(context.Background(), tasks)

	if len(results) != len(tasks) {
		t.Errorf("Expected %d results, got %d", len(tasks), len(results))
	}

	var successCount, failCount int
	for _, r := range results {
		if r.Err != nil {
			failCount++
			if r.Task.Input != failFile {
				t.Errorf("Unexpected failure for %s", r.Task.Input)
			}
		} else {
			successCount++
		}
	}

	if successCount != 2 {
		t.Errorf("Expected 2 successes, got %d", successCount)
	}
	if failCount != 1 {
		t.Errorf("Expected 1 failure, got %d", failCount)
	}
}

func TestPool_Cancellation(t *testing.T) {
	proc := &mockProcessor{delay: 100 * time.Millisecond}

	pool := New(Config{
		Workers:   2,
		Processor: proc,
	})

	tasks := imageTasks(10)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	results := pool.Run(ctx, tasks)
	elapsed := time.Since(start)

	if elapsed > 200*time.Millisecond {
		t.Errorf("Expected early cancellation, took %v", elapsed)
	}

	var cancelledCount int
	for _, r := range results {
		if r.Err != nil && errors.Is(r.Err, context.Canceled) {
			cancelledCount++
		}
	}
	if cancelledCount == 0 {
		t.Error("Expected at least one cancelled result")
	}

	t.Logf("Completed with %d results (%d cancelled) in %v", len(results), cancelledCount, elapsed)
}

func TestPool_ProgressCallback(t *testing.T) {
	proc := &mockProcessor{delay: 10 * time.Millisecond}

	var progressCalls atomic.Int32
	var lastCompleted, lastTotal int

	pool := New(Config{
		Workers:   2,
		Processor: proc,
		OnProgress: func(completed, total, failed int) {
			progressCalls.Add(1)
			lastCompleted = completed
			lastTotal = total
		},
	})

	tasks := imageTasks(3)
	pool.Run(context.Background(), tasks)

	if progressCalls.Load() != int32(len(tasks)) {
		t.Errorf("Expected %d progress callbacks, got %d", len(tasks), progressCalls.Load())
	}
	if lastCompleted != len(tasks) {
		t.Errorf("Expected lastCompleted=%d, got %d", len(tasks), lastCompleted)
	}
	if lastTotal != len(tasks) {
		t.Errorf("Expected lastTotal=%d, got %d", len(tasks), lastTotal)
	}
}

func TestPool_EmptyTasks(t *testing.T) {
	proc := &mockProcessor{}

	pool := New(Config{
		Workers:   2,
		Processor: proc,
	})

	results := pool.Run(context.Background(), nil)

	if len(results) != 0 {
		t.Errorf("Expected 0 results for empty tasks, got %d", len(results))
	}

	if proc.callCount.Load() != 0 {
		t.Errorf("Expected 0 processor calls for empty tasks, got %d", proc.callCount.Load())
	}
}

func TestPool_ProcessorFunc(t *testing.T) {
	pool := New(Config{
		Processor: ProcessorFunc(func(ctx context.Context, task Task) (string, error) {
			return task.Output, nil
		}),
	})

	results := pool.Run(context.Background(), []Task{{Input: "a.png", Output: "out/a.png"}})

	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0].Path != "out/a.png" {
		t.Errorf("Expected output path out/a.png, got %s", results[0].Path)
	}
}

// TestPool_AdjustsImages runs real in-memory adjustments through the pool and
// checks every image matches a sequential adjustment of the same pixels.
func TestPool_AdjustsImages(t *testing.T) {
	const n = 12
	factor := intensity.Level(60).Factor()

	sources := make(map[string]*image.NRGBA, n)
	var mu sync.Mutex
	outputs := make(map[string]*image.NRGBA, n)

	tasks := make([]Task, n)
	for i := range tasks {
		img := image.NewNRGBA(image.Rect(0, 0, 8, 4))
		for j := 0; j < len(img.Pix); j += 4 {
			img.Pix[j] = uint8(i * 20)
			img.Pix[j+1] = uint8(j)
			img.Pix[j+2] = uint8(255 - j)
			img.Pix[j+3] = uint8(100 + i)
		}
		name := fmt.Sprintf("img%02d.png", i)
		sources[name] = img
		tasks[i] = Task{Input: name, Output: "out/" + name}
	}

	pool := New(Config{
		Workers: 3,
		Processor: ProcessorFunc(func(ctx context.Context, task Task) (string, error) {
			src := sources[task.Input]
			dst := image.NewNRGBA(src.Bounds())
			copy(dst.Pix, src.Pix)
			if err := adjust.AdjustImage(dst, factor); err != nil {
				return "", err
			}
			mu.Lock()
			outputs[task.Output] = dst
			mu.Unlock()
			return task.Output, nil
		}),
	})

	results := pool.Run(context.Background(), tasks)
	if len(results) != n {
		t.Fatalf("Expected %d results, got %d", n, len(results))
	}

	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("Unexpected error for %s: %v", r.Task.Input, r.Err)
		}
		if r.Path != r.Task.Output {
			t.Errorf("Expected path %s, got %s", r.Task.Output, r.Path)
		}

		want := append([]uint8(nil), sources[r.Task.Input].Pix...)
		if err := adjust.Adjust(want, factor); err != nil {
			t.Fatal(err)
		}
		got := outputs[r.Path]
		if !bytes.Equal(got.Pix, want) {
			t.Errorf("%s: pooled adjustment differs from sequential", r.Task.Input)
		}
		for j := 3; j < len(got.Pix); j += 4 {
			if got.Pix[j] != sources[r.Task.Input].Pix[j] {
				t.Fatalf("%s: alpha changed at byte %d", r.Task.Input, j)
			}
		}
	}
}

// TestPool_FailedDecodeDoesNotStopBatch mixes undecodable inputs with valid
// ones; failures are reported per image and progress counts them.
func TestPool_FailedDecodeDoesNotStopBatch(t *testing.T) {
	truncated := []byte{137, 80, 78, 71} // PNG magic only
	inputs := map[string][]byte{
		"ok1.png":     nil,
		"broken.png":  truncated,
		"ok2.png":     nil,
		"garbage.jpg": []byte("not a jpeg"),
	}

	var lastFailed int
	pool := New(Config{
		Workers: 2,
		Processor: ProcessorFunc(func(ctx context.Context, task Task) (string, error) {
			if data := inputs[task.Input]; data != nil {
				if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
					return "", fmt.Errorf("decode %s: %w", task.Input, err)
				}
			}
			return task.Output, nil
		}),
		OnProgress: func(completed, total, failed int) {
			lastFailed = failed
		},
	})

	var tasks []Task
	for name := range inputs {
		tasks = append(tasks, Task{Input: name, Output: "out/" + name})
	}
	results := pool.Run(context.Background(), tasks)

	var failed []string
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r.Task.Input)
		}
	}
	if len(failed) != 2 {
		t.Errorf("Expected 2 failed images, got %v", failed)
	}
	if lastFailed != 2 {
		t.Errorf("Expected progress to report 2 failures, got %d", lastFailed)
	}
}
