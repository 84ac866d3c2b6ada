// Package richtext implements the greeting content model: an
// arena-allocated document tree, transactional editing commands with
// undo/redo, and the canonical markup serializer.
package richtext

// Node kinds, matching the serialized markup type names.
const (
	KindDoc        = "doc"
	KindParagraph  = "paragraph"
	KindHeading    = "heading"
	KindBulletList = "bulletList"
	KindOrderedList = "orderedList"
	KindListItem   = "listItem"
	KindBlockquote = "blockquote"
	KindText       = "text"
	KindImage      = "image"
	KindVideo      = "video"
)

// Align is the horizontal alignment of a media node.
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Media width bounds, in percent of the content column.
const (
	MinWidth     = 20
	MaxWidth     = 100
	DefaultWidth = 100
)

// ClampWidth forces a width into the [MinWidth, MaxWidth] range.
func ClampWidth(w int) int {
	if w < MinWidth {
		return MinWidth
	}
	if w > MaxWidth {
		return MaxWidth
	}
	return w
}

// ValidAlign reports whether a is one of the three supported alignments.
func ValidAlign(a Align) bool {
	return a == AlignLeft || a == AlignCenter || a == AlignRight
}

// NodeID is an index into the document arena. Holding a NodeID across
// edits is always safe: nodes are never freed, only detached.
type NodeID int

// NoNode is the null node reference.
const NoNode NodeID = -1

// Node is a single node in the document tree. Which fields are
// meaningful depends on Kind.
type Node struct {
	Kind string

	// Heading
	Level int

	// Text
	Text   string
	Bold   bool
	Italic bool

	// Media (image, video)
	Src         string
	Width       int // percent, [20,100]
	Align       Align
	ContentType string // video playback hint, e.g. "video/mp4"

	Children []NodeID
}

// IsMedia reports whether the node is an image or video.
func (n *Node) IsMedia() bool {
	return n.Kind == KindImage || n.Kind == KindVideo
}

// IsBlock reports whether the node can host a cursor.
func (n *Node) IsBlock() bool {
	switch n.Kind {
	case KindParagraph, KindHeading, KindBulletList, KindOrderedList, KindListItem, KindBlockquote:
		return true
	}
	return false
}

// Doc is the document tree. Index 0 is always the root doc node.
type Doc struct {
	nodes []Node
}

// NewDoc returns a document containing a single empty paragraph.
func NewDoc() *Doc {
	d := &Doc{nodes: []Node{{Kind: KindDoc}}}
	p := d.alloc(Node{Kind: KindParagraph})
	d.nodes[0].Children = append(d.nodes[0].Children, p)
	return d
}

func emptyDoc() *Doc {
	return &Doc{nodes: []Node{{Kind: KindDoc}}}
}

// Root returns the root node id.
func (d *Doc) Root() NodeID { return 0 }

// Node returns the node for id, or nil when id is out of range.
func (d *Doc) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(d.nodes) {
		return nil
	}
	return &d.nodes[id]
}

func (d *Doc) alloc(n Node) NodeID {
	d.nodes = append(d.nodes, n)
	return NodeID(len(d.nodes) - 1)
}

func (d *Doc) insertChild(parent NodeID, index int, child NodeID) {
	p := d.Node(parent)
	if p == nil {
		return
	}
	if index < 0 || index > len(p.Children) {
		index = len(p.Children)
	}
	p.Children = append(p.Children, NoNode)
	copy(p.Children[index+1:], p.Children[index:])
	p.Children[index] = child
}

func (d *Doc) removeChild(parent, child NodeID) {
	p := d.Node(parent)
	if p == nil {
		return
	}
	for i, c := range p.Children {
		if c == child {
			p.Children = append(p.Children[:i], p.Children[i+1:]...)
			return
		}
	}
}

// childIndex returns the position of child under parent, or -1.
func (d *Doc) childIndex(parent, child NodeID) int {
	p := d.Node(parent)
	if p == nil {
		return -1
	}
	for i, c := range p.Children {
		if c == child {
			return i
		}
	}
	return -1
}

// Walk visits every attached node in document order.
func (d *Doc) Walk(fn func(id NodeID, n *Node)) {
	d.walkFrom(d.Root(), fn)
}

func (d *Doc) walkFrom(id NodeID, fn func(NodeID, *Node)) {
	n := d.Node(id)
	if n == nil {
		return
	}
	fn(id, n)
	for _, child := range n.Children {
		d.walkFrom(child, fn)
	}
}

// Attached reports whether id is reachable from the root.
func (d *Doc) Attached(id NodeID) bool {
	found := false
	d.Walk(func(nid NodeID, _ *Node) {
		if nid == id {
			found = true
		}
	})
	return found
}

// MediaNode identifies an embedded media reference in a document.
type MediaNode struct {
	ID   NodeID
	Kind string
	Src  string
}

// MediaNodes returns all attached image and video nodes in document order.
func (d *Doc) MediaNodes() []MediaNode {
	var media []MediaNode
	d.Walk(func(id NodeID, n *Node) {
		if n.IsMedia() {
			media = append(media, MediaNode{ID: id, Kind: n.Kind, Src: n.Src})
		}
	})
	return media
}

// Equal compares the attached trees of two documents: kinds, order,
// text, marks, and media attributes. Detached arena slots are ignored.
func (d *Doc) Equal(other *Doc) bool {
	return d.nodeEqual(other, d.Root(), other.Root())
}

func (d *Doc) nodeEqual(other *Doc, a, b NodeID) bool {
	na, nb := d.Node(a), other.Node(b)
	if na == nil || nb == nil {
		return na == nb
	}
	if na.Kind != nb.Kind || na.Level != nb.Level ||
		na.Text != nb.Text || na.Bold != nb.Bold || na.Italic != nb.Italic ||
		na.Src != nb.Src || na.Width != nb.Width || na.Align != nb.Align ||
		na.ContentType != nb.ContentType {
		return false
	}
	if len(na.Children) != len(nb.Children) {
		return false
	}
	for i := range na.Children {
		if !d.nodeEqual(other, na.Children[i], nb.Children[i]) {
			return false
		}
	}
	return true
}
