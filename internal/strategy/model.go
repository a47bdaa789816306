// Package strategy models rule trees and evaluates them into per-rebalance
// transaction directives.
package strategy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownNodeType is returned for a node whose type tag is not
	// condition or weight, or a weight node with an unrecognized action.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrUnknownComparator is returned for a comparator outside <,>,<=,>=,==,!=.
	ErrUnknownComparator = errors.New("unknown comparator")

	// ErrWeightSumInvalid is returned when a weighted_buy's declared weights
	// do not sum to 1.
	ErrWeightSumInvalid = errors.New("weights must sum to 1")
)

// Node is a strategy-tree node: either a *Condition or a *WeightAction.
type Node interface {
	isNode()
}

// Condition compares an indicator against a threshold and descends into one
// of two branches.
type Condition struct {
	Indicator  Indicator `json:"indicator"`
	Comparator string    `json:"comparator"`
	Value      Threshold `json:"value"`
	IfTrue     NodeList  `json:"if_true"`
	IfFalse    NodeList  `json:"if_false"`
}

func (*Condition) isNode() {}

// WeightAction emits buy or sell weights for a set of assets.
type WeightAction struct {
	WeightType string  `json:"weight_type"`
	Assets     []Asset `json:"assets"`
}

func (*WeightAction) isNode() {}

// Asset names a symbol inside a weight action. Weight is used by
// weighted_buy, Percentage by partial_sell.
type Asset struct {
	Symbol     string  `json:"symbol"`
	Weight     float64 `json:"weight,omitempty"`
	Percentage float64 `json:"percentage,omitempty"`
}

// Indicator is a scalar indicator reference, or the composite "and" whose
// Inputs are evaluated together.
type Indicator struct {
	Name   string      `json:"name"`
	Symbol string      `json:"symbol,omitempty"`
	Params []int       `json:"params,omitempty"`
	Inputs []Indicator `json:"inputs,omitempty"`
}

// IsComposite reports whether the indicator is the "and" composite.
func (i Indicator) IsComposite() bool {
	return i.Name == "and"
}

// Threshold is a comparison target: a scalar, or a list matched pointwise
// against a composite indicator's values.
type Threshold struct {
	scalar *float64
	list   []float64
}

// UnmarshalJSON accepts either a number or an array of numbers.
func (t *Threshold) UnmarshalJSON(data []byte) error {
	var scalar float64
	if err := json.Unmarshal(data, &scalar); err == nil {
		t.scalar = &scalar
		t.list = nil
		return nil
	}

	var list []float64
	if err := json.Unmarshal(data, &list); err == nil {
		t.scalar = nil
		t.list = list
		return nil
	}

	return fmt.Errorf("threshold must be a number or an array of numbers")
}

// MarshalJSON emits the scalar or the list, whichever is set.
func (t Threshold) MarshalJSON() ([]byte, error) {
	if t.scalar != nil {
		return json.Marshal(*t.scalar)
	}
	return json.Marshal(t.list)
}

// Scalar returns the scalar threshold and whether one is set.
func (t Threshold) Scalar() (float64, bool) {
	if t.scalar == nil {
		return 0, false
	}
	return *t.scalar, true
}

// List returns the list threshold, or nil.
func (t Threshold) List() []float64 {
	return t.list
}

// ScalarThreshold builds a scalar threshold. Used by tests.
func ScalarThreshold(v float64) Threshold {
	return Threshold{scalar: &v}
}

// ListThreshold builds a list threshold. Used by tests.
func ListThreshold(vs ...float64) Threshold {
	return Threshold{list: vs}
}

// NodeList decodes a JSON array of heterogeneous nodes by their type tag.
// A bare node object is accepted as a one-element list, so a strategy whose
// root is a single condition or weight action posts without wrapping.
type NodeList []Node

// UnmarshalJSON implements json.Unmarshaler.
func (l *NodeList) UnmarshalJSON(data []byte) error {
	if trimmed := bytes.TrimLeft(data, " \t\r\n"); len(trimmed) > 0 && trimmed[0] == '{' {
		node, err := DecodeNode(trimmed)
		if err != nil {
			return err
		}
		*l = []Node{node}
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	nodes := make([]Node, 0, len(raw))
	for _, r := range raw {
		node, err := DecodeNode(r)
		if err != nil {
			return err
		}
		nodes = append(nodes, node)
	}
	*l = nodes
	return nil
}

// DecodeNode decodes a single node from JSON, dispatching on its type tag.
func DecodeNode(data []byte) (Node, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to decode node: %w", err)
	}

	switch probe.Type {
	case "condition":
		var c Condition
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("failed to decode condition node: %w", err)
		}
		return &c, nil
	case "weight":
		var w WeightAction
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("failed to decode weight node: %w", err)
		}
		return &w, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownNodeType, probe.Type)
}

// Strategy is a named rule tree as stored and as posted to /backtest.
type Strategy struct {
	Name  string `json:"name"`
	Rules Node   `json:"rules"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Strategy) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name  string          `json:"name"`
		Rules json.RawMessage `json:"rules"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	node, err := DecodeNode(raw.Rules)
	if err != nil {
		return err
	}

	s.Name = raw.Name
	s.Rules = node
	return nil
}
