package flow

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-hq/ABMX/errors"
	"github.com/meridian-hq/ABMX/logger"
)

// Connection routes one node's output to another node's input.
type Connection struct {
	SourceNode   string `json:"source_node"`
	SourceOutput string `json:"source_output"`
	TargetNode   string `json:"target_node"`
	TargetInput  string `json:"target_input"`
}

// Status summarizes one pipeline run.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusPartialSuccess Status = "partial_success"
	StatusError          Status = "error"
)

// Result aggregates the outputs and failures of one pipeline run.
// Outputs holds only nodes that ran to completion; Errors holds the
// classified failure per node that did not.
type Result struct {
	RunID    string
	Status   Status
	Outputs  map[string]map[string]any
	Errors   map[string]error
	Duration time.Duration
}

// Pipeline composes nodes and connections into an executable graph.
// Construction validates every connection endpoint and rejects cycles;
// execution follows a fixed dependency order computed once.
type Pipeline struct {
	name        string
	nodes       map[string]Node
	descriptors map[string]Descriptor
	connections []Connection
	inbound     map[string][]Connection
	order       []string
}

// New builds a pipeline from nodes and connections. Connections whose
// endpoints name an unknown node or an undeclared port fail
// construction, as does any cycle in the connection graph.
func New(name string, nodes []Node, connections []Connection) (*Pipeline, error) {
	if name == "" {
		return nil, errors.NewValidationError("pipeline name must not be empty")
	}

	byName := make(map[string]Node, len(nodes))
	descriptors := make(map[string]Descriptor, len(nodes))
	for _, n := range nodes {
		if n == nil {
			return nil, errors.NewValidationError("pipeline %s: nil node", name)
		}
		d := describe(n)
		if d.Name == "" {
			return nil, errors.NewValidationError("pipeline %s: node with empty name", name)
		}
		if _, exists := byName[d.Name]; exists {
			return nil, errors.NewValidationError("pipeline %s: duplicate node name %q", name, d.Name)
		}
		byName[d.Name] = n
		descriptors[d.Name] = d
	}

	for _, c := range connections {
		if err := validateConnection(name, c, descriptors); err != nil {
			return nil, err
		}
	}

	order, err := executionOrder(name, descriptors, connections)
	if err != nil {
		return nil, err
	}

	inbound := make(map[string][]Connection)
	for _, c := range connections {
		inbound[c.TargetNode] = append(inbound[c.TargetNode], c)
	}

	return &Pipeline{
		name:        name,
		nodes:       byName,
		descriptors: descriptors,
		connections: append([]Connection(nil), connections...),
		inbound:     inbound,
		order:       order,
	}, nil
}

func validateConnection(pipeline string, c Connection, descriptors map[string]Descriptor) error {
	src, ok := descriptors[c.SourceNode]
	if !ok {
		return errors.NewValidationError("pipeline %s: connection references unknown source node %q",
			pipeline, c.SourceNode)
	}
	dst, ok := descriptors[c.TargetNode]
	if !ok {
		return errors.NewValidationError("pipeline %s: connection references unknown target node %q",
			pipeline, c.TargetNode)
	}
	if c.SourceNode == c.TargetNode {
		return errors.NewValidationError("pipeline %s: connection from node %q to itself",
			pipeline, c.SourceNode)
	}
	if !slices.Contains(src.Outputs, c.SourceOutput) {
		return errors.NewValidationError("pipeline %s: node %q does not declare output %q",
			pipeline, c.SourceNode, c.SourceOutput)
	}
	if !slices.Contains(dst.Inputs, c.TargetInput) {
		return errors.NewValidationError("pipeline %s: node %q does not declare input %q",
			pipeline, c.TargetNode, c.TargetInput)
	}
	return nil
}

// executionOrder computes a topological order over the connection graph
// using depth-first search with temporary and permanent marks. Roots and
// children are visited in reverse name order so the final reversal
// yields name-ordered ties.
func executionOrder(pipeline string, descriptors map[string]Descriptor, connections []Connection) ([]string, error) {
	names := make([]string, 0, len(descriptors))
	for name := range descriptors {
		names = append(names, name)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	type edge struct{ from, to string }
	outbound := make(map[string][]string, len(descriptors))
	seen := make(map[edge]bool, len(connections))
	for _, c := range connections {
		e := edge{c.SourceNode, c.TargetNode}
		if seen[e] {
			continue
		}
		seen[e] = true
		outbound[e.from] = append(outbound[e.from], e.to)
	}
	for _, targets := range outbound {
		sort.Sort(sort.Reverse(sort.StringSlice(targets)))
	}

	permanent := make(map[string]bool, len(names))
	temporary := make(map[string]bool)

	var order []string
	var visit func(string) error
	visit = func(name string) error {
		if permanent[name] {
			return nil
		}
		if temporary[name] {
			return errors.NewValidationError("pipeline %s: connection cycle detected involving node %q",
				pipeline, name)
		}
		temporary[name] = true
		for _, next := range outbound[name] {
			if err := visit(next); err != nil {
				return err
			}
		}
		delete(temporary, name)
		permanent[name] = true
		order = append(order, name)
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}

	// Reverse the post-order so sources come before their targets.
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// Order returns the node names in execution order.
func (p *Pipeline) Order() []string {
	return append([]string(nil), p.order...)
}

// Descriptors returns the node descriptors in execution order.
func (p *Pipeline) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, p.descriptors[name])
	}
	return out
}

// Connections returns the declared connections.
func (p *Pipeline) Connections() []Connection {
	return append([]Connection(nil), p.connections...)
}

// Process executes every node exactly once in dependency order and
// aggregates their outputs. A node failure is logged and recorded but
// never aborts the remaining nodes; the overall status degrades to
// partial_success, or to error when every node failed.
func (p *Pipeline) Process(ctx context.Context, payload map[string]any) *Result {
	start := time.Now()
	runID := uuid.NewString()

	entityID, _ := payload["id"].(string)
	entityType, _ := payload["type"].(string)

	// Nodes and their collaborators log under the same run id, plus any
	// request id the caller stamped on the context.
	ctx = logger.WithRunID(ctx, runID)
	log := logger.ChildLogger(logger.LoggerFromContext(ctx).Named("flow"),
		logger.FieldPipeline, p.name)
	log.Debugw("pipeline run started",
		logger.FieldEntityID, entityID,
		logger.FieldEntityType, entityType,
	)

	outputs := make(map[string]map[string]any, len(p.order))
	nodeErrs := make(map[string]error)

	for _, name := range p.order {
		inputs := p.assembleInputs(name, payload, outputs)

		if err := ValidateInput(p.descriptors[name], inputs); err != nil {
			nodeErrs[name] = err
			log.Warnw("node input validation failed",
				logger.FieldNode, name,
				logger.FieldEntityID, entityID,
				logger.FieldEntityType, entityType,
				logger.FieldError, err,
			)
			continue
		}

		out, err := runNode(ctx, p.nodes[name], inputs)
		if err != nil {
			err = ensureClass(err)
			nodeErrs[name] = err
			log.Errorw("node run failed",
				logger.FieldNode, name,
				logger.FieldEntityID, entityID,
				logger.FieldEntityType, entityType,
				logger.FieldErrorClass, errors.Class(err),
				logger.FieldError, err,
			)
			continue
		}
		outputs[name] = out
	}

	status := StatusSuccess
	switch {
	case len(p.order) > 0 && len(nodeErrs) == len(p.order):
		status = StatusError
	case len(nodeErrs) > 0:
		status = StatusPartialSuccess
	}

	duration := time.Since(start)
	log.Infow("pipeline run finished",
		logger.FieldStatus, string(status),
		logger.FieldEntityID, entityID,
		logger.FieldCount, len(outputs),
		logger.FieldDurationMS, duration.Milliseconds(),
	)

	return &Result{
		RunID:    runID,
		Status:   status,
		Outputs:  outputs,
		Errors:   nodeErrs,
		Duration: duration,
	}
}

// assembleInputs builds the input map for one node. Only nodes with no
// inbound connections see the raw trigger payload; every other node is
// fed exclusively through its connections.
func (p *Pipeline) assembleInputs(name string, payload map[string]any, outputs map[string]map[string]any) map[string]any {
	inbound := p.inbound[name]

	if len(inbound) == 0 {
		inputs := make(map[string]any, len(payload))
		for k, v := range payload {
			inputs[k] = v
		}
		return inputs
	}

	inputs := make(map[string]any, len(inbound))
	for _, conn := range inbound {
		upstream, ok := outputs[conn.SourceNode]
		if !ok {
			// Source failed or produced nothing; contributes nothing.
			continue
		}
		value, ok := upstream[conn.SourceOutput]
		if !ok {
			// Declared output absent at runtime. Skipping is the contract:
			// downstream validation decides what is required.
			continue
		}
		inputs[conn.TargetInput] = value
	}
	return inputs
}

// runNode invokes the node body, converting a panic into a processing
// failure so one misbehaving node cannot take down the run.
func runNode(ctx context.Context, node Node, inputs map[string]any) (out map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewProcessingError("node %s panicked: %v", node.Name(), r)
		}
	}()
	return node.Run(ctx, inputs)
}

// ensureClass folds unclassified node failures into the processing class.
func ensureClass(err error) error {
	if errors.Class(err) == "unknown" {
		return errors.MarkProcessing(err)
	}
	return err
}
