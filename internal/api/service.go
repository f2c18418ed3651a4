package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samcharles93/qnn/internal/contract"
	"github.com/samcharles93/qnn/internal/pipeline"
	"github.com/samcharles93/qnn/internal/tensor"
	"github.com/samcharles93/qnn/internal/timing"
)

// RunService executes pipeline runs.
type RunService struct {
	provider RunnerProvider
	clock    func() time.Time
}

func NewRunService(provider RunnerProvider) *RunService {
	return &RunService{provider: provider, clock: time.Now}
}

// Execute runs req.Input through the pipeline. Invalid inputs, including
// contract violations raised by the layers, come back as ErrInvalidRequest.
func (s *RunService) Execute(ctx context.Context, req *RunRequest) (*Run, error) {
	cfg := s.provider.Config()
	if req.Input.DType == "" {
		req.Input.DType = cfg.DType
	}
	if req.Input.DType != cfg.DType {
		return nil, newInvalidRequest(fmt.Sprintf("input dtype %q, pipeline expects %q", req.Input.DType, cfg.DType))
	}
	autoload := cfg.Autoload
	if req.Autoload != nil {
		autoload = *req.Autoload
	}

	run := &Run{
		ID:        newRunID(),
		Object:    "run",
		CreatedAt: s.clock().Unix(),
		Pipeline:  cfg.Name,
		Autoload:  autoload,
	}
	err := s.provider.WithRunner(ctx, func(r pipeline.Runner, rec *timing.Recorder) error {
		var (
			out    tensor.Dump
			runErr error
		)
		if err := contract.Catch(func() {
			out, runErr = r.Run(ctx, req.Input, autoload)
		}); err != nil {
			return newInvalidRequest(err.Error())
		}
		if runErr != nil {
			if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
				return runErr
			}
			return newInvalidRequest(runErr.Error())
		}
		if req.Real {
			out = out.WithValues()
		}
		run.Output = &out
		run.Layers = rec.Summaries()
		return nil
	})
	if err != nil {
		return nil, err
	}
	run.Status = "completed"
	return run, nil
}
