package soap

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Node is one element of a decoded response document. Namespace prefixes are
// dropped on decode; every lookup matches local names only.
type Node struct {
	Local    string
	Attrs    map[string]string
	Children []*Node

	text strings.Builder
}

// Parse decodes an XML document into a node tree rooted at the document
// element. It fails on malformed markup or an empty document.
func Parse(raw []byte) (*Node, error) {
	decoder := xml.NewDecoder(bytes.NewReader(raw))

	var root *Node
	var stack []*Node
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml: %w", err)
		}
		switch tok := token.(type) {
		case xml.StartElement:
			node := &Node{Local: tok.Name.Local}
			for _, attr := range tok.Attr {
				if attr.Name.Space == "xmlns" || attr.Name.Local == "xmlns" {
					continue
				}
				if node.Attrs == nil {
					node.Attrs = map[string]string{}
				}
				node.Attrs[attr.Name.Local] = attr.Value
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("parse xml: multiple document elements")
				}
				root = node
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, node)
			}
			stack = append(stack, node)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(tok)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("parse xml: empty document")
	}
	return root, nil
}

// Text returns the element's own character data with surrounding whitespace
// trimmed.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.text.String())
}

// Attr returns the named attribute value matched on its local name.
func (n *Node) Attr(local string) string {
	if n == nil {
		return ""
	}
	return n.Attrs[local]
}

// First returns the first descendant with the given local name, searching
// depth first. It returns nil when no element matches.
func (n *Node) First(local string) *Node {
	if n == nil {
		return nil
	}
	for _, child := range n.Children {
		if child.Local == local {
			return child
		}
		if found := child.First(local); found != nil {
			return found
		}
	}
	return nil
}

// All returns every descendant with the given local name in document order.
func (n *Node) All(local string) []*Node {
	if n == nil {
		return nil
	}
	var matches []*Node
	for _, child := range n.Children {
		if child.Local == local {
			matches = append(matches, child)
		}
		matches = append(matches, child.All(local)...)
	}
	return matches
}

// FirstText is shorthand for First followed by Text.
func (n *Node) FirstText(local string) string {
	return n.First(local).Text()
}
