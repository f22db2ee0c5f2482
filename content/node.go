// Package content reads and writes node property documents. Each node of a
// content tree keeps its properties in a DocumentName file inside the node's
// directory; everything else in the directory is child nodes or binaries.
package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"

	"github.com/franksops/grabsync/property"
)

// DocumentName is the file name of a node's property document.
const DocumentName = ".content.json"

// ErrInvalidDocument is returned for documents that cannot be decoded.
var ErrInvalidDocument = errors.New("invalid node document")

// Property is one named property of a node. Value is kept verbatim.
type Property struct {
	Name      string          `json:"name"`
	Value     json.RawMessage `json:"value"`
	Protected bool            `json:"protected,omitempty"`
}

// Node is the decoded property document of one node. The node types may be
// given as top-level fields, as jcr:primaryType and jcr:mixinTypes
// properties, or both; when both are present they must agree.
type Node struct {
	Type       string     `json:"primaryType,omitempty"`
	Mixins     []string   `json:"mixinTypes,omitempty"`
	Properties []Property `json:"properties"`
}

// IsDocument reports whether p names a node property document.
func IsDocument(p string) bool {
	return path.Base(p) == DocumentName
}

// Decode parses a property document.
func Decode(r io.Reader) (*Node, error) {
	var n Node
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&n); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	for i, p := range n.Properties {
		if p.Name == "" {
			return nil, fmt.Errorf("%w: property %d has no name", ErrInvalidDocument, i)
		}
	}
	if err := n.checkTypes(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return &n, nil
}

// checkTypes rejects node type values that would misclassify the node.
func (n *Node) checkTypes() error {
	if raw := n.lookup(property.PrimaryType); raw != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("%s must be a string: %w", property.PrimaryType, err)
		}
		if n.Type != "" && n.Type != s {
			return fmt.Errorf("primaryType %q conflicts with %s %q", n.Type, property.PrimaryType, s)
		}
	}
	if raw := n.lookup(property.MixinTypes); raw != nil {
		var mixins []string
		if err := json.Unmarshal(raw, &mixins); err != nil {
			return fmt.Errorf("%s must be a string array: %w", property.MixinTypes, err)
		}
		if n.Mixins != nil && !slices.Equal(n.Mixins, mixins) {
			return fmt.Errorf("mixinTypes %q conflict with %s %q", n.Mixins, property.MixinTypes, mixins)
		}
	}
	return nil
}

// Encode writes n as an indented property document.
func (n *Node) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(n)
}

// PrimaryType returns the node's primary type, or "" when unset.
func (n *Node) PrimaryType() string {
	if n.Type != "" {
		return n.Type
	}
	var s string
	if raw := n.lookup(property.PrimaryType); raw != nil {
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
	}
	return s
}

// MixinTypes returns the node's mixin types.
func (n *Node) MixinTypes() []string {
	if n.Mixins != nil {
		return slices.Clone(n.Mixins)
	}
	var mixins []string
	if raw := n.lookup(property.MixinTypes); raw != nil {
		if err := json.Unmarshal(raw, &mixins); err != nil {
			return nil
		}
	}
	return mixins
}

// Classification derives the security classification from the node types.
func (n *Node) Classification() property.NodeClassification {
	return property.Classify(n.PrimaryType(), n.MixinTypes())
}

// Filter returns a copy of n holding only transferable properties and the
// number of properties dropped.
func (n *Node) Filter() (*Node, int) {
	owner := n.Classification()
	out := &Node{
		Type:       n.Type,
		Mixins:     slices.Clone(n.Mixins),
		Properties: make([]Property, 0, len(n.Properties)),
	}
	for _, p := range n.Properties {
		if property.IsTransferable(property.Descriptor{Name: p.Name, Protected: p.Protected}, owner) {
			out.Properties = append(out.Properties, p)
		}
	}
	return out, len(n.Properties) - len(out.Properties)
}

func (n *Node) lookup(name string) json.RawMessage {
	for _, p := range n.Properties {
		if p.Name == name {
			return p.Value
		}
	}
	return nil
}
