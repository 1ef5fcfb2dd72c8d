// Package flow provides the node and pipeline abstractions that compose
// independent processing steps into one run per trigger event. Nodes
// declare named input and output ports; connections route one node's
// output to another node's input; the pipeline validates the wiring at
// construction time and executes nodes in dependency order.
package flow

import (
	"context"

	"github.com/meridian-hq/ABMX/errors"
)

// Node is a single named processing step. Run receives the assembled
// input map and returns its outputs keyed by declared output name.
// Run executes synchronously on the caller's goroutine and must not
// mutate values a sibling node could read.
type Node interface {
	Name() string
	Inputs() []string
	Outputs() []string
	Run(ctx context.Context, inputs map[string]any) (map[string]any, error)
}

// Describer is implemented by nodes that carry a human-readable summary.
type Describer interface {
	Description() string
}

// Descriptor is the immutable view of a node's identity and ports,
// captured at pipeline construction.
type Descriptor struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Inputs      []string `json:"inputs"`
	Outputs     []string `json:"outputs"`
}

func describe(n Node) Descriptor {
	d := Descriptor{
		Name:    n.Name(),
		Inputs:  append([]string(nil), n.Inputs()...),
		Outputs: append([]string(nil), n.Outputs()...),
	}
	if td, ok := n.(Describer); ok {
		d.Description = td.Description()
	}
	return d
}

// ValidateInput checks that every declared input is present in the
// assembled input map, reporting the first missing one in declaration
// order.
func ValidateInput(desc Descriptor, inputs map[string]any) error {
	for _, name := range desc.Inputs {
		if _, ok := inputs[name]; !ok {
			return errors.NewValidationError("node %s missing required input %q", desc.Name, name)
		}
	}
	return nil
}

// RunFunc is the signature of a node body.
type RunFunc func(ctx context.Context, inputs map[string]any) (map[string]any, error)

// FuncNode adapts a plain function into a Node. Used for small inline
// steps, such as the source node that shapes the trigger payload.
type FuncNode struct {
	name    string
	desc    string
	inputs  []string
	outputs []string
	fn      RunFunc
}

// NewFuncNode builds a FuncNode with the given identity and body.
func NewFuncNode(name, description string, inputs, outputs []string, fn RunFunc) *FuncNode {
	return &FuncNode{
		name:    name,
		desc:    description,
		inputs:  inputs,
		outputs: outputs,
		fn:      fn,
	}
}

func (n *FuncNode) Name() string        { return n.name }
func (n *FuncNode) Description() string { return n.desc }
func (n *FuncNode) Inputs() []string    { return n.inputs }
func (n *FuncNode) Outputs() []string   { return n.outputs }

func (n *FuncNode) Run(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	return n.fn(ctx, inputs)
}
