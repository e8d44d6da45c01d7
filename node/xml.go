// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package node

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DecodeXML decodes an XML document from r.
// It returns an unnamed document node whose children are
// the document's top-level elements. Elements become
// nodes, attributes become node attributes and the
// (trimmed) character data of an element becomes its
// value. Namespaces are dropped.
func DecodeXML(r io.Reader) (*Node, error) {
	doc := New("", "")
	dec := xml.NewDecoder(r)
	cur := doc
	var text []*strings.Builder
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("node: decode XML: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			nd := New(t.Name.Local, "")
			for _, a := range t.Attr {
				nd.SetAttr(a.Name.Local, a.Value)
			}
			cur.Append(nd)
			cur = nd
			text = append(text, new(strings.Builder))
		case xml.CharData:
			if len(text) > 0 {
				text[len(text)-1].Write(t)
			}
		case xml.EndElement:
			cur.Value = strings.TrimSpace(text[len(text)-1].String())
			text = text[:len(text)-1]
			cur = cur.up
		}
	}
	if doc.sub == nil {
		return nil, errors.New("node: decode XML: no root element")
	}
	return doc, nil
}
