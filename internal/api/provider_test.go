package api

import (
	"context"
	"sync"
	"testing"

	"github.com/samcharles93/qnn/internal/layer"
	"github.com/samcharles93/qnn/internal/pipeline"
	"github.com/samcharles93/qnn/internal/tensor"
	"github.com/samcharles93/qnn/internal/timing"
)

func TestPooledRunnersSurviveShapeChurnInArena(t *testing.T) {
	t.Parallel()

	cfg, err := pipeline.ParseConfig([]byte(testPipeline))
	if err != nil {
		t.Fatalf("parse pipeline: %v", err)
	}
	p, err := NewPooledRunnerProvider(cfg, layer.Options{}, nil, 2, 4096)
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	defer func() {
		if err := p.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	}()

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := 1; c <= 150; c++ {
				data := make([]int32, 2*c)
				for i := range data {
					data[i] = int32((i + w) % 50)
				}
				in := tensor.Dump{DType: "int8", Shape: []int{2, 1, c}, Data: data}
				err := p.WithRunner(context.Background(), func(r pipeline.Runner, _ *timing.Recorder) error {
					out, err := r.Run(context.Background(), in, false)
					if err != nil {
						return err
					}
					if len(out.Data) != c {
						t.Errorf("channels %d: got %d outputs", c, len(out.Data))
					}
					return nil
				})
				if err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("run: %v", err)
	}
}

func TestPooledRunnerProviderClose(t *testing.T) {
	t.Parallel()

	cfg, err := pipeline.ParseConfig([]byte(testPipeline))
	if err != nil {
		t.Fatalf("parse pipeline: %v", err)
	}
	p, err := NewPooledRunnerProvider(cfg, layer.Options{}, nil, 1, 256)
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// A runner lent out after Close still works and is released afterwards.
	err = p.WithRunner(context.Background(), func(r pipeline.Runner, _ *timing.Recorder) error {
		_, err := r.Run(context.Background(), tensor.Dump{DType: "int8", Shape: []int{1, 1, 2}, Data: []int32{1, 2}}, false)
		return err
	})
	if err != nil {
		t.Fatalf("run after close: %v", err)
	}
	if len(p.idle) != 0 {
		t.Fatalf("closed provider kept %d idle runners", len(p.idle))
	}
}
