package api

import (
	"github.com/samcharles93/qnn/internal/pipeline"
	"github.com/samcharles93/qnn/internal/tensor"
	"github.com/samcharles93/qnn/internal/timing"
)

type RunRequest struct {
	Input tensor.Dump `json:"input"`
	// Autoload overrides the pipeline default when set.
	Autoload *bool `json:"autoload,omitempty"`
	// Store keeps the run retrievable by id. Defaults to true.
	Store *bool `json:"store,omitempty"`
	// Real adds dequantized values to the output.
	Real bool `json:"real,omitempty"`
}

type Run struct {
	ID        string           `json:"id"`
	Object    string           `json:"object"`
	CreatedAt int64            `json:"created_at"`
	Pipeline  string           `json:"pipeline"`
	Status    string           `json:"status"`
	Autoload  bool             `json:"autoload"`
	Output    *tensor.Dump     `json:"output,omitempty"`
	Layers    []timing.Summary `json:"layers,omitempty"`
	Error     *ResponseError   `json:"error,omitempty"`
}

type DeleteRunResp struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

type PipelineInfo struct {
	Name     string                 `json:"name"`
	DType    string                 `json:"dtype"`
	Autoload bool                   `json:"autoload"`
	Layers   []pipeline.LayerConfig `json:"layers"`
	Kinds    []string               `json:"kinds"`
}

type ResponseError struct {
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
}
