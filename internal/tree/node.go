package tree

import "strings"

// Attribute is one named attribute of a Node, prefix included ("xlink:href")
type Attribute struct {
	Name  string
	Value string
}

// Node 属性树节点
type Node struct {
	Name       string
	Attributes []Attribute
	Children   []*Node
	// Text is the character data directly under the node, trimmed
	Text string
}

// Tokenizer turns raw manifest bytes into an attributed tree
type Tokenizer interface {
	Tokenize(data []byte) (*Node, error)
}

// TokenizerFunc adapts a plain function to Tokenizer
type TokenizerFunc func(data []byte) (*Node, error)

// Tokenize calls f(data)
func (f TokenizerFunc) Tokenize(data []byte) (*Node, error) {
	return f(data)
}

// Attr 获取属性值
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.Attributes {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// AttrOr returns the attribute value or def when absent
func (n *Node) AttrOr(name, def string) string {
	if v, ok := n.Attr(name); ok {
		return v
	}
	return def
}

// ChildrenNamed 获取指定名称的子节点
func (n *Node) ChildrenNamed(name string) []*Node {
	res := make([]*Node, 0)
	for _, c := range n.Children {
		if c.Name == name {
			res = append(res, c)
		}
	}
	return res
}

// FirstChild returns the first child called name, nil if there is none
func (n *Node) FirstChild(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// LocalName strips the namespace prefix of the node name
func (n *Node) LocalName() string {
	if i := strings.IndexByte(n.Name, ':'); i >= 0 {
		return n.Name[i+1:]
	}
	return n.Name
}
