package richtext

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Content is the persisted dual form of a document. Markup is the
// canonical serialized tree; Text is the plain-text projection derived
// from it. The two are always regenerated together from the same tree.
type Content struct {
	Markup string `json:"markup"`
	Text   string `json:"text"`
}

// markupNode is the wire shape of a serialized tree node.
type markupNode struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []markupNode   `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
	Marks   []markupMark   `json:"marks,omitempty"`
}

type markupMark struct {
	Type string `json:"type"`
}

// Serialize converts a tree into its persisted form. Media widths
// outside [20,100] are clamped in the output rather than rejected.
func Serialize(d *Doc) (Content, error) {
	root := encodeNode(d, d.Root())
	markup, err := json.Marshal(root)
	if err != nil {
		return Content{}, fmt.Errorf("marshal markup: %w", err)
	}
	return Content{Markup: string(markup), Text: textProjection(d)}, nil
}

func encodeNode(d *Doc, id NodeID) markupNode {
	n := d.Node(id)
	out := markupNode{Type: n.Kind}

	switch n.Kind {
	case KindHeading:
		out.Attrs = map[string]any{"level": n.Level}
	case KindText:
		out.Text = n.Text
		if n.Bold {
			out.Marks = append(out.Marks, markupMark{Type: "bold"})
		}
		if n.Italic {
			out.Marks = append(out.Marks, markupMark{Type: "italic"})
		}
	case KindImage, KindVideo:
		attrs := map[string]any{
			"src":       n.Src,
			"width":     strconv.Itoa(ClampWidth(n.Width)) + "%",
			"textAlign": string(n.Align),
		}
		if n.Kind == KindVideo && n.ContentType != "" {
			attrs["contentType"] = n.ContentType
		}
		out.Attrs = attrs
	}

	for _, child := range n.Children {
		out.Content = append(out.Content, encodeNode(d, child))
	}
	return out
}

// Deserialize parses canonical markup back into a tree. Media nodes
// missing width or textAlign get the defaults (100%, left); widths out
// of range are clamped on load.
func Deserialize(markup string) (*Doc, error) {
	var root markupNode
	if err := json.Unmarshal([]byte(markup), &root); err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}
	if root.Type != KindDoc {
		return nil, fmt.Errorf("parse markup: root node is %q, want %q", root.Type, KindDoc)
	}

	d := emptyDoc()
	for _, child := range root.Content {
		id, err := decodeNode(d, child)
		if err != nil {
			return nil, err
		}
		d.insertChild(d.Root(), len(d.Node(d.Root()).Children), id)
	}
	return d, nil
}

func decodeNode(d *Doc, m markupNode) (NodeID, error) {
	n := Node{Kind: m.Type}

	switch m.Type {
	case KindParagraph, KindBulletList, KindOrderedList, KindListItem, KindBlockquote:
	case KindHeading:
		n.Level = attrInt(m.Attrs, "level", 1)
	case KindText:
		n.Text = m.Text
		for _, mark := range m.Marks {
			switch mark.Type {
			case "bold":
				n.Bold = true
			case "italic":
				n.Italic = true
			}
		}
	case KindImage, KindVideo:
		n.Src = attrString(m.Attrs, "src", "")
		n.Width = ClampWidth(attrWidth(m.Attrs, DefaultWidth))
		align := Align(attrString(m.Attrs, "textAlign", string(AlignLeft)))
		if !ValidAlign(align) {
			align = AlignLeft
		}
		n.Align = align
		if m.Type == KindVideo {
			n.ContentType = attrString(m.Attrs, "contentType", "")
		}
	default:
		return NoNode, fmt.Errorf("parse markup: unknown node type %q", m.Type)
	}

	id := d.alloc(n)
	for _, child := range m.Content {
		childID, err := decodeNode(d, child)
		if err != nil {
			return NoNode, err
		}
		d.insertChild(id, len(d.Node(id).Children), childID)
	}
	return id, nil
}

func attrString(attrs map[string]any, key, fallback string) string {
	if v, ok := attrs[key].(string); ok {
		return v
	}
	return fallback
}

func attrInt(attrs map[string]any, key string, fallback int) int {
	switch v := attrs[key].(type) {
	case float64:
		return int(v)
	case string:
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// attrWidth accepts both "80%" strings and bare numbers.
func attrWidth(attrs map[string]any, fallback int) int {
	switch v := attrs["width"].(type) {
	case float64:
		return int(v)
	case string:
		trimmed := strings.TrimSuffix(strings.TrimSpace(v), "%")
		if parsed, err := strconv.Atoi(trimmed); err == nil {
			return parsed
		}
	}
	return fallback
}

// textProjection strips all markup and media, concatenating block text
// in document order separated by newlines.
func textProjection(d *Doc) string {
	root := d.Node(d.Root())
	var blocks []string
	for _, child := range root.Children {
		n := d.Node(child)
		if n == nil || n.IsMedia() {
			continue
		}
		text := blockText(d, child)
		if text != "" {
			blocks = append(blocks, text)
		}
	}
	return strings.Join(blocks, "\n")
}

func blockText(d *Doc, id NodeID) string {
	n := d.Node(id)
	if n == nil || n.IsMedia() {
		return ""
	}
	if n.Kind == KindText {
		return n.Text
	}
	var parts []string
	for _, child := range n.Children {
		if text := blockText(d, child); text != "" {
			parts = append(parts, text)
		}
	}
	switch n.Kind {
	case KindBulletList, KindOrderedList, KindBlockquote:
		return strings.Join(parts, "\n")
	}
	return strings.Join(parts, "")
}
