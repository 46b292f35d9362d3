package tree

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrEmptyDocument is returned when no element could be read
var ErrEmptyDocument = errors.New("document contains no element")

// knownPrefixes maps namespace URIs to the prefixes the parser looks for
var knownPrefixes = map[string]string{
	"urn:mpeg:cenc:2013":           "cenc",
	"http://www.w3.org/1999/xlink": "xlink",
	"urn:microsoft:playready":      "mspr",
	"urn:scte:scte35:2014:xml+bin": "scte35",
	"cenc":                         "cenc",
	"xlink":                        "xlink",
	"mspr":                         "mspr",
}

// XMLTokenizer is the Tokenizer backed by encoding/xml
type XMLTokenizer struct{}

// Tokenize 解析XML
func (XMLTokenizer) Tokenize(data []byte) (*Node, error) {
	return ParseXML(data)
}

// ParseXML reads the first root element of data into a Node tree.
// Namespaced names are rewritten with their conventional prefix, the
// default namespace is dropped.
func ParseXML(data []byte) (*Node, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = false

	var root *Node
	stack := make([]*Node, 0, 16)
	texts := make([]*strings.Builder, 0, 16)

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("XML解析失败: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			node := &Node{Name: qualifiedName(t.Name)}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
					continue
				}
				node.Attributes = append(node.Attributes, Attribute{Name: qualifiedName(a.Name), Value: a.Value})
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, node)
			} else if root == nil {
				root = node
			}
			stack = append(stack, node)
			texts = append(texts, &strings.Builder{})
		case xml.CharData:
			if len(texts) > 0 {
				texts[len(texts)-1].Write(t)
			}
		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			node := stack[len(stack)-1]
			node.Text = strings.TrimSpace(texts[len(texts)-1].String())
			stack = stack[:len(stack)-1]
			texts = texts[:len(texts)-1]
			if len(stack) == 0 {
				return root, nil
			}
		}
	}

	if root == nil {
		return nil, ErrEmptyDocument
	}
	return root, nil
}

func qualifiedName(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	if prefix, ok := knownPrefixes[name.Space]; ok {
		return prefix + ":" + name.Local
	}
	return name.Local
}
