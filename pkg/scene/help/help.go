// Package help describes the constructs of the scene format, for the CLI
// (`scenec describe`), the REPL (`:describe`) and the server's /describe
// endpoint. Everything is read from the ast schema tables, so the reference
// never drifts from what the builder accepts.
package help

import (
	"fmt"
	"strings"

	"github.com/sambeau/scenery/pkg/scene/ast"
	"github.com/sambeau/scenery/pkg/scene/errors"
)

// TopicResult represents the help output for a topic
type TopicResult struct {
	Kind        string         `json:"kind"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Aliases     []string       `json:"aliases,omitempty"`
	Inline      bool           `json:"inline,omitempty"`
	Counter     string         `json:"counter,omitempty"`
	Fields      []FieldEntry   `json:"fields,omitempty"`
	Members     []string       `json:"members,omitempty"`
	MaxMembers  int            `json:"max_members,omitempty"`
	Example     string         `json:"example,omitempty"`
	Constructs  []ConstructRef `json:"constructs,omitempty"`
}

// FieldEntry is one inline field of a construct
type FieldEntry struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Required bool   `json:"required"`
	Max      int    `json:"max"`
	Doc      string `json:"doc,omitempty"`
}

// ConstructRef is a line of the construct list
type ConstructRef struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// DescribeTopic returns help for a construct name (aliases and any letter
// case accepted). An empty topic or "constructs" lists every construct.
func DescribeTopic(topic string) (*TopicResult, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" || topic == "constructs" {
		return describeConstructs(), nil
	}

	c, ok := ast.Lookup(topic)
	if !ok {
		for _, name := range ast.ConstructNames() {
			if strings.EqualFold(name, topic) {
				c, _ = ast.Lookup(name)
				ok = true
				break
			}
		}
	}
	if !ok {
		return nil, unknownTopicError(topic)
	}
	return describeConstruct(c), nil
}

func describeConstruct(c *ast.Construct) *TopicResult {
	result := &TopicResult{
		Kind:        "construct",
		Name:        c.Name,
		Description: c.Doc,
		Aliases:     c.Aliases,
		Inline:      c.Inline,
		Counter:     c.Counter,
		Members:     c.Members,
		MaxMembers:  c.MaxMembers,
		Example:     Example(c),
	}
	for _, f := range c.Fields {
		result.Fields = append(result.Fields, FieldEntry{
			Name:     f.Name,
			Value:    f.Value.String(),
			Required: f.Required,
			Max:      f.MaxCount(),
			Doc:      f.Doc,
		})
	}
	return result
}

func describeConstructs() *TopicResult {
	result := &TopicResult{Kind: "construct-list", Name: "constructs"}
	for _, c := range ast.Schema {
		result.Constructs = append(result.Constructs, ConstructRef{Name: c.Name, Description: c.Doc})
	}
	return result
}

// unknownTopicError suggests the closest construct name
func unknownTopicError(topic string) error {
	if match := errors.FindClosestMatch(topic, ast.ConstructNames()); match != "" {
		return fmt.Errorf("unknown topic: %s\nDid you mean: %s?", topic, match)
	}
	return fmt.Errorf("unknown topic: %s\nTry: constructs, Scene, Sphere, Material", topic)
}

// Example returns a skeleton of the construct with placeholder values for
// its required fields.
func Example(c *ast.Construct) string {
	if c.Inline {
		return c.Name + " 0\n"
	}
	if c.Kind == ast.KindScene {
		var sb strings.Builder
		for _, m := range c.Members {
			fmt.Fprintf(&sb, "%s {\n    ...\n}\n", m)
		}
		return sb.String()
	}

	var lines []string
	if c.Counter != "" {
		lines = append(lines, c.Counter+" 0")
	}
	for _, f := range c.Fields {
		if !f.Required {
			continue
		}
		lines = append(lines, f.Name+" "+placeholder(f.Value))
	}
	if len(lines) == 0 {
		return c.Name + " {}\n"
	}
	return c.Name + " {\n    " + strings.Join(lines, "\n    ") + "\n}\n"
}

func placeholder(v ast.ValueKind) string {
	switch v {
	case ast.Vector3Value:
		return "0 0 0"
	case ast.TextValue:
		return "file.ext"
	}
	return "0"
}
