package tools

import (
	"context"
	"fmt"
	"sort"

	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/log"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/metrics"
)

// Registry holds the registered tools and executes them through their kits.
type Registry struct {
	kits    map[string]*kit
	metrics *metrics.Collector
	logger  log.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(collector *metrics.Collector, logger log.Logger) *Registry {
	if collector == nil {
		collector = metrics.NewCollector()
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Registry{
		kits:    make(map[string]*kit),
		metrics: collector,
		logger:  logger,
	}
}

// Register adds a tool. Registering the same name twice is a programming
// error and panics during startup.
func (r *Registry) Register(tool Tool) {
	if _, exists := r.kits[tool.Name()]; exists {
		panic("duplicate tool registration: " + tool.Name())
	}
	r.kits[tool.Name()] = newKit(tool, r.metrics, r.logger.With("tool", tool.Name()))
}

// Execute runs a tool by name.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (*Result, error) {
	k, ok := r.kits[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return k.execute(ctx, args)
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.kits[name]
	return ok
}

// Catalog returns descriptors for every registered tool, sorted by name.
// The planner embeds this in its prompt.
func (r *Registry) Catalog() []Descriptor {
	out := make([]Descriptor, 0, len(r.kits))
	for _, k := range r.kits {
		out = append(out, Descriptor{
			Name:        k.tool.Name(),
			Description: k.tool.Description(),
			InputSchema: k.tool.InputSchema(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the sorted registered tool names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.kits))
	for name := range r.kits {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
