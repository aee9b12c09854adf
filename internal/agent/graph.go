package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/log"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/metrics"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/tools"
)

// Node names, exposed in progress events and metrics.
const (
	NodeExtract    = "extract_constraints"
	NodePlan       = "plan"
	NodeExecute    = "execute_tools"
	NodeVerify     = "verify"
	NodeRepair     = "repair"
	NodeSynthesize = "synthesize"
)

// Progress is one status update emitted while a run advances.
type Progress struct {
	Node    string `json:"node"`
	Percent int    `json:"percent"`
	Detail  string `json:"detail,omitempty"`
}

// ProgressFunc receives progress events. May be nil.
type ProgressFunc func(Progress)

// Graph wires the planning nodes together and runs them as a loop:
// extract, then plan / execute / verify rounds with repair in between,
// then synthesis.
type Graph struct {
	llm      *LLM
	registry *tools.Registry
	metrics  *metrics.Collector
	logger   log.Logger
}

// NewGraph builds the agent graph.
func NewGraph(llm *LLM, registry *tools.Registry, collector *metrics.Collector, logger log.Logger) *Graph {
	if llm == nil {
		llm = NewLLM(LLMConfig{})
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Graph{
		llm:      llm,
		registry: registry,
		metrics:  collector,
		logger:   logger,
	}
}

// Run executes the full graph for one request.
func (g *Graph) Run(ctx context.Context, s *State, onProgress ProgressFunc) (*Results, error) {
	emit := func(node string, percent int, detail string) {
		if onProgress != nil {
			onProgress(Progress{Node: node, Percent: percent, Detail: detail})
		}
	}

	emit(NodeExtract, 5, "extracting constraints")
	if err := g.timed(ctx, NodeExtract, func(ctx context.Context) error {
		return g.extractConstraints(ctx, s)
	}); err != nil {
		return nil, err
	}

	for round := 0; ; round++ {
		emit(NodePlan, 20+round*10, "planning tool calls")
		if err := g.timed(ctx, NodePlan, func(ctx context.Context) error {
			return g.plan(ctx, s)
		}); err != nil {
			return nil, err
		}

		emit(NodeExecute, 40+round*10, "running tools")
		for s.PendingSteps() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := g.timed(ctx, NodeExecute, func(ctx context.Context) error {
				return g.executeTools(ctx, s)
			}); err != nil {
				return nil, err
			}
		}

		emit(NodeVerify, 70, "verifying constraints")
		if err := g.timed(ctx, NodeVerify, func(context.Context) error {
			return g.verify(s)
		}); err != nil {
			return nil, err
		}

		if !s.needsRepair() {
			break
		}

		emit(NodeRepair, 75, "repairing plan")
		if err := g.timed(ctx, NodeRepair, func(ctx context.Context) error {
			return g.repair(ctx, s)
		}); err != nil {
			return nil, err
		}
	}

	emit(NodeSynthesize, 90, "writing itinerary")
	if err := g.timed(ctx, NodeSynthesize, func(ctx context.Context) error {
		return g.synthesize(ctx, s)
	}); err != nil {
		return nil, err
	}
	if s.Results == nil {
		return nil, fmt.Errorf("synthesis produced no results")
	}

	emit(NodeSynthesize, 100, "done")
	return s.Results, nil
}

// timed runs one node and records its duration.
func (g *Graph) timed(ctx context.Context, node string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	if g.metrics != nil {
		g.metrics.RecordNodeDuration(node, time.Since(start))
	}
	if err != nil {
		return fmt.Errorf("%s: %w", node, err)
	}
	return nil
}
