// Package tools provides the travel data tools the planning agent executes:
// flight, lodging, activity, and transit search plus weather forecasts and
// knowledge base retrieval.
//
// Every tool runs through a shared kit that adds response caching, input
// validation, bounded retries with jitter, and a per-call timeout. Flight,
// lodging, activity, and transit results come from deterministic fixture
// generators; weather can hit the live Open-Meteo API with a fixture
// fallback.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

var (
	// ErrUnknownTool indicates no tool is registered under the name.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidInput indicates the arguments failed validation.
	ErrInvalidInput = errors.New("invalid tool input")

	// ErrUnknownDestination indicates a city the fixtures don't cover.
	ErrUnknownDestination = errors.New("unknown destination")
)

// Tool is a single executable capability. Implementations must be safe for
// concurrent use.
type Tool interface {
	// Name is the identifier the planner uses in plan steps.
	Name() string

	// Description tells the planner when to pick this tool.
	Description() string

	// InputSchema describes the expected arguments.
	InputSchema() *jsonschema.Schema

	// Call executes the tool with already-validated arguments.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// Result is the envelope every tool execution returns.
type Result struct {
	Tool       string `json:"tool"`
	Data       any    `json:"data"`
	Cached     bool   `json:"cached"`
	DurationMS int64  `json:"duration_ms"`
}

// Descriptor is the planner-facing description of one registered tool.
type Descriptor struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"input_schema"`
}

// mustSchema derives a JSON schema from an input struct type.
// Schema derivation from a static type cannot fail at runtime, so a failure
// here is a programming error.
func mustSchema[T any]() *jsonschema.Schema {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		panic("deriving schema: " + err.Error())
	}
	return schema
}

// decodeArgs converts the planner's loosely typed arguments into a tool's
// input struct via a JSON round trip.
func decodeArgs[T any](args map[string]any) (T, error) {
	var in T
	raw, err := json.Marshal(args)
	if err != nil {
		return in, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	// Unknown fields are tolerated; the planner sometimes adds extras.
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return in, nil
}
