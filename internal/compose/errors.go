package compose

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrExportInProgress is returned when an export is requested while
	// another one is still running on the same orchestrator.
	ErrExportInProgress = errors.New("an export is already in progress")

	// ErrCancelled is the error carried by a Result whose export was
	// cancelled by the caller.
	ErrCancelled = errors.New("export cancelled")

	ErrEmptyTimeline = errors.New("timeline is empty")
)

// AssetLoadError reports a source that could not be probed or read.
type AssetLoadError struct {
	URL string
	Err error
}

func (e *AssetLoadError) Error() string {
	return fmt.Sprintf("load asset %s: %v", e.URL, e.Err)
}

func (e *AssetLoadError) Unwrap() error { return e.Err }

// GraphError reports a failure to construct the render graph or the renderer
// itself. Nothing has been rendered when it is returned.
type GraphError struct {
	Reason string
	Err    error
}

func (e *GraphError) Error() string {
	if e.Err == nil {
		return "build render graph: " + e.Reason
	}
	return fmt.Sprintf("build render graph: %s: %v", e.Reason, e.Err)
}

func (e *GraphError) Unwrap() error { return e.Err }

// RenderError is a failure reported by the renderer after it started.
// Diagnostic carries the renderer's own output.
type RenderError struct {
	Diagnostic string
	Err        error
}

func (e *RenderError) Error() string {
	if e.Diagnostic == "" {
		return fmt.Sprintf("render: %v", e.Err)
	}
	return fmt.Sprintf("render: %v: %s", e.Err, e.Diagnostic)
}

func (e *RenderError) Unwrap() error { return e.Err }

// FailureKind classifies a terminal export error.
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureAssetLoad FailureKind = "asset_load"
	FailureGraph     FailureKind = "graph_construction"
	FailureRender    FailureKind = "render"
	FailureCancelled FailureKind = "cancelled"
)

// Classify maps an error onto the export failure taxonomy. Unknown errors
// are treated as render failures.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) {
		return FailureCancelled
	}

	var assetErr *AssetLoadError
	if errors.As(err, &assetErr) {
		return FailureAssetLoad
	}
	var graphErr *GraphError
	if errors.As(err, &graphErr) {
		return FailureGraph
	}
	return FailureRender
}
