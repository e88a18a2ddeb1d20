// Package solast models the JSON abstract syntax trees produced by solc and answers the
// structural queries diagnostics need, such as finding the declaration that encloses a span.
//
// Both AST flavours are accepted: the compact form ("nodeType", nested node-valued fields) and
// the legacy form ("name", "attributes", "children"). Fields that are not child nodes are kept
// verbatim in Node.Attributes.
package solast

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/juanfranblanco/vscode-solidity-sub001/pkg/sourcemap"
)

// Category groups node kinds into the payload variants the rest of the code cares about.
type Category int

const (
	CategoryOther Category = iota
	CategoryDeclaration
	CategoryStatement
	CategoryExpression
	CategoryTypeName
)

var declarationKinds = map[string]bool{
	"ContractDefinition":             true,
	"EnumDefinition":                 true,
	"ErrorDefinition":                true,
	"EventDefinition":                true,
	"FunctionDefinition":             true,
	"ModifierDefinition":             true,
	"StructDefinition":               true,
	"UserDefinedValueTypeDefinition": true,
	"VariableDeclaration":            true,
}

var expressionKinds = map[string]bool{
	"Assignment":                   true,
	"BinaryOperation":              true,
	"Conditional":                  true,
	"ElementaryTypeNameExpression": true,
	"FunctionCall":                 true,
	"FunctionCallOptions":          true,
	"Identifier":                   true,
	"IndexAccess":                  true,
	"IndexRangeAccess":             true,
	"Literal":                      true,
	"MemberAccess":                 true,
	"NewExpression":                true,
	"TupleExpression":              true,
	"UnaryOperation":               true,
}

var typeNameKinds = map[string]bool{
	"ArrayTypeName":       true,
	"ElementaryTypeName":  true,
	"FunctionTypeName":    true,
	"Mapping":             true,
	"UserDefinedTypeName": true,
}

func categorize(kind string) Category {
	switch {
	case declarationKinds[kind]:
		return CategoryDeclaration
	case expressionKinds[kind]:
		return CategoryExpression
	case typeNameKinds[kind]:
		return CategoryTypeName
	case kind == "Block" || kind == "UncheckedBlock" || kind == "PlaceholderStatement" ||
		strings.HasSuffix(kind, "Statement"):
		return CategoryStatement
	default:
		return CategoryOther
	}
}

// Declaration is the typed payload of declaration nodes.
type Declaration struct {
	Name            string
	Visibility      string
	StateVariable   bool
	StorageLocation string
	Constant        bool
	Mutability      string
}

// Node is one AST node. Nodes are owned by the tree they were parsed into and are never copied
// or mutated by the query functions in this package.
type Node struct {
	Kind     string
	Category Category
	ID       int
	// Src is only meaningful when HasSrc is true.
	Src    sourcemap.Span
	HasSrc bool
	// Field is the key this node sits under in its parent ("children" for legacy ASTs).
	Field      string
	Decl       *Declaration
	Attributes map[string]any
	Children   []*Node
}

// Child returns the first direct child stored under field.
func (n *Node) Child(field string) *Node {
	for _, c := range n.Children {
		if c.Field == field {
			return c
		}
	}
	return nil
}

// TypeName returns the declared type of a variable declaration, nil if it has none.
func (n *Node) TypeName() *Node {
	if c := n.Child("typeName"); c != nil {
		return c
	}
	for _, c := range n.Children {
		if c.Field == "children" && c.Category == CategoryTypeName {
			return c
		}
	}
	return nil
}

// Name returns the declared name, or the "name" attribute for other nodes.
func (n *Node) Name() string {
	if n.Decl != nil {
		return n.Decl.Name
	}
	s, _ := n.Attributes["name"].(string)
	return s
}

// Parse decodes a JSON AST in either compact or legacy form.
func Parse(data []byte) (*Node, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode AST: %w", err)
	}
	return FromMap(raw)
}

// FromMap builds a tree from an already decoded JSON object.
func FromMap(raw map[string]any) (*Node, error) {
	if !isNode(raw) {
		return nil, fmt.Errorf("AST root has neither nodeType nor name")
	}
	return build(raw, "")
}

func isNode(m map[string]any) bool {
	if _, ok := m["nodeType"].(string); ok {
		return true
	}
	_, hasName := m["name"].(string)
	_, hasSrc := m["src"].(string)
	return hasName && hasSrc
}

func build(raw map[string]any, field string) (*Node, error) {
	n := &Node{
		Field:      field,
		Attributes: make(map[string]any),
	}

	legacy := false
	if kind, ok := raw["nodeType"].(string); ok {
		n.Kind = kind
	} else {
		n.Kind, _ = raw["name"].(string)
		legacy = true
	}
	n.Category = categorize(n.Kind)

	if id, ok := raw["id"].(float64); ok {
		n.ID = int(id)
	}
	if src, ok := raw["src"].(string); ok {
		span, err := sourcemap.DecodeSingle(src)
		if err != nil {
			return nil, fmt.Errorf("node %d (%s): bad src: %w", n.ID, n.Kind, err)
		}
		n.Src = span
		n.HasSrc = true
	}

	for key, value := range raw {
		switch key {
		case "nodeType", "src", "id":
			continue
		case "name":
			if legacy {
				continue
			}
		case "attributes":
			if attrs, ok := value.(map[string]any); ok && legacy {
				for k, v := range attrs {
					n.Attributes[k] = v
				}
				continue
			}
		case "children":
			if legacy {
				if err := n.addLegacyChildren(value); err != nil {
					return nil, err
				}
				continue
			}
		}
		added, err := n.addChildren(key, value)
		if err != nil {
			return nil, err
		}
		if !added {
			n.Attributes[key] = value
		}
	}

	if !legacy {
		sortChildren(n.Children)
	}
	if n.Category == CategoryDeclaration {
		n.Decl = declarationOf(n.Attributes)
	}
	return n, nil
}

func (n *Node) addLegacyChildren(value any) error {
	items, _ := value.([]any)
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		child, err := build(m, "children")
		if err != nil {
			return err
		}
		n.Children = append(n.Children, child)
	}
	return nil
}

// addChildren adds value as child nodes when it is a node or a list of nodes (nulls allowed).
func (n *Node) addChildren(field string, value any) (bool, error) {
	switch v := value.(type) {
	case map[string]any:
		if _, ok := v["nodeType"].(string); !ok {
			return false, nil
		}
		child, err := build(v, field)
		if err != nil {
			return false, err
		}
		n.Children = append(n.Children, child)
		return true, nil
	case []any:
		nodes := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			m, ok := item.(map[string]any)
			if !ok {
				return false, nil
			}
			if _, ok := m["nodeType"].(string); !ok {
				return false, nil
			}
			nodes = append(nodes, m)
		}
		if len(nodes) == 0 {
			return false, nil
		}
		for _, m := range nodes {
			child, err := build(m, field)
			if err != nil {
				return false, err
			}
			n.Children = append(n.Children, child)
		}
		return true, nil
	}
	return false, nil
}

// sortChildren restores source order, which JSON object decoding loses for compact ASTs.
func sortChildren(children []*Node) {
	sort.SliceStable(children, func(i, j int) bool {
		a, b := children[i], children[j]
		if a.HasSrc != b.HasSrc {
			return a.HasSrc
		}
		if a.Src.Start != b.Src.Start {
			return a.Src.Start < b.Src.Start
		}
		if a.Src.Length != b.Src.Length {
			return a.Src.Length > b.Src.Length
		}
		return a.Field < b.Field
	})
}

func declarationOf(attrs map[string]any) *Declaration {
	d := &Declaration{}
	d.Name, _ = attrs["name"].(string)
	d.Visibility, _ = attrs["visibility"].(string)
	d.StateVariable, _ = attrs["stateVariable"].(bool)
	d.StorageLocation, _ = attrs["storageLocation"].(string)
	d.Constant, _ = attrs["constant"].(bool)
	d.Mutability, _ = attrs["mutability"].(string)
	return d
}
