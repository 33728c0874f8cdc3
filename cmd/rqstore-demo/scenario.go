package main

import (
	"fmt"
	"os"

	"github.com/cuemby/rqstore/pkg/types"
	"gopkg.in/yaml.v3"
)

// Scenario is a sequence of store operations loaded from a YAML file, for
// replaying the spec's end-to-end examples without wiring up a real
// transport or mutation pipeline.
type Scenario struct {
	Steps []Step `yaml:"steps"`
}

// Step is one operation in a Scenario. Only the fields relevant to Op are
// populated; unused fields are left zero.
type Step struct {
	Op           string   `yaml:"op"`
	Session      string   `yaml:"session"`
	App          string   `yaml:"app"`
	Query        string   `yaml:"query"`
	InstaqlQuery string   `yaml:"instaql_query"`
	DatalogQuery string   `yaml:"datalog_query"`
	ReturnType   string   `yaml:"return_type"`
	Hash         *string  `yaml:"hash"`
	TxID         int64    `yaml:"tx_id"`
	Topics       []yaml.Node `yaml:"topics"`
}

func loadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	return &sc, nil
}

// decodeTopics turns each YAML topic (a sequence of parts) into a
// types.Topic. A part is one of: a bare scalar (Keyword), "_" (Symbol), a
// {set: [...]} mapping, a {cmp: {op, value}} mapping, or a {not: value}
// mapping.
func decodeTopics(nodes []yaml.Node) ([]types.Topic, error) {
	topics := make([]types.Topic, 0, len(nodes))
	for _, n := range nodes {
		var rawParts []yaml.Node
		if err := n.Decode(&rawParts); err != nil {
			return nil, fmt.Errorf("decode topic: %w", err)
		}
		parts := make(types.Topic, 0, len(rawParts))
		for _, p := range rawParts {
			part, err := decodeTopicPart(p)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part)
		}
		topics = append(topics, parts)
	}
	return topics, nil
}

func decodeTopicPart(n yaml.Node) (types.TopicPart, error) {
	if n.Kind == yaml.ScalarNode {
		var s string
		if err := n.Decode(&s); err == nil && s == "_" {
			return types.Symbol(), nil
		}
		var v any
		if err := n.Decode(&v); err != nil {
			return types.TopicPart{}, fmt.Errorf("decode topic part: %w", err)
		}
		return types.Keyword(v), nil
	}

	var shape struct {
		Set []any `yaml:"set"`
		Cmp *struct {
			Op    string `yaml:"op"`
			Value any    `yaml:"value"`
		} `yaml:"cmp"`
		Not *any `yaml:"not"`
	}
	if err := n.Decode(&shape); err != nil {
		return types.TopicPart{}, fmt.Errorf("decode topic part: %w", err)
	}
	switch {
	case shape.Set != nil:
		return types.Set(shape.Set...), nil
	case shape.Cmp != nil:
		op, err := parseComparatorOp(shape.Cmp.Op)
		if err != nil {
			return types.TopicPart{}, err
		}
		return types.Cmp(op, shape.Cmp.Value), nil
	case shape.Not != nil:
		return types.NotEqual(*shape.Not), nil
	default:
		return types.TopicPart{}, fmt.Errorf("topic part has no recognized shape")
	}
}

func parseComparatorOp(op string) (types.ComparatorOp, error) {
	switch op {
	case "gt":
		return types.CompGt, nil
	case "gte":
		return types.CompGte, nil
	case "lt":
		return types.CompLt, nil
	case "lte":
		return types.CompLte, nil
	case "like":
		return types.CompLike, nil
	default:
		return 0, fmt.Errorf("unrecognized comparator op %q", op)
	}
}

func parseReturnType(s string) types.ReturnType {
	if s == string(types.ReturnTypeTree) {
		return types.ReturnTypeTree
	}
	return types.ReturnTypeJoinRows
}
