package scoring

import (
	"context"

	"github.com/meridian-hq/ABMX/crm"
)

// Node adapts the agent into a pipeline step.
type Node struct {
	agent *Agent
}

// NewNode wraps an agent for pipeline use.
func NewNode(agent *Agent) *Node {
	return &Node{agent: agent}
}

func (n *Node) Name() string { return "scoring" }

func (n *Node) Description() string {
	return "Scores CRM records against the weighted signal tables"
}

func (n *Node) Inputs() []string  { return []string{"entity"} }
func (n *Node) Outputs() []string { return []string{"scores"} }

// Run scores the entity input and emits the result on the scores port.
func (n *Node) Run(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	entity, err := crm.CoerceEntity(inputs["entity"])
	if err != nil {
		return nil, err
	}
	res, err := n.agent.Score(ctx, entity)
	if err != nil {
		return nil, err
	}
	return map[string]any{"scores": res}, nil
}
