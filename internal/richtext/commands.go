package richtext

// command is a reversible tree mutation. Every edit that reaches the
// persisted markup goes through one of these so undo history is
// complete for text and media alike; there is no side channel that
// mutates presentation state directly.
type command interface {
	apply(d *Doc)
	revert(d *Doc)
}

type history struct {
	undo []command
	redo []command
}

func (h *history) push(c command) {
	h.undo = append(h.undo, c)
	h.redo = nil
}

func (h *history) popUndo() command {
	if len(h.undo) == 0 {
		return nil
	}
	c := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, c)
	return c
}

func (h *history) popRedo() command {
	if len(h.redo) == 0 {
		return nil
	}
	c := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, c)
	return c
}

// insertNodeCmd inserts a new node under parent at index. The arena
// slot is allocated on first apply and reused on redo.
type insertNodeCmd struct {
	parent NodeID
	index  int
	node   Node
	id     NodeID
}

func newInsertNodeCmd(parent NodeID, index int, node Node) *insertNodeCmd {
	return &insertNodeCmd{parent: parent, index: index, node: node, id: NoNode}
}

func (c *insertNodeCmd) apply(d *Doc) {
	if c.id == NoNode {
		c.id = d.alloc(c.node)
	}
	d.insertChild(c.parent, c.index, c.id)
}

func (c *insertNodeCmd) revert(d *Doc) {
	d.removeChild(c.parent, c.id)
}

type setWidthCmd struct {
	id   NodeID
	to   int
	from int
}

func (c *setWidthCmd) apply(d *Doc) {
	if n := d.Node(c.id); n != nil {
		n.Width = c.to
	}
}

func (c *setWidthCmd) revert(d *Doc) {
	if n := d.Node(c.id); n != nil {
		n.Width = c.from
	}
}

type setAlignCmd struct {
	id   NodeID
	to   Align
	from Align
}

func (c *setAlignCmd) apply(d *Doc) {
	if n := d.Node(c.id); n != nil {
		n.Align = c.to
	}
}

func (c *setAlignCmd) revert(d *Doc) {
	if n := d.Node(c.id); n != nil {
		n.Align = c.from
	}
}

// Mark identifies a text formatting mark.
type Mark string

const (
	MarkBold   Mark = "bold"
	MarkItalic Mark = "italic"
)

type toggleMarkCmd struct {
	id   NodeID
	mark Mark
}

func (c *toggleMarkCmd) apply(d *Doc)  { c.flip(d) }
func (c *toggleMarkCmd) revert(d *Doc) { c.flip(d) }

func (c *toggleMarkCmd) flip(d *Doc) {
	n := d.Node(c.id)
	if n == nil || n.Kind != KindText {
		return
	}
	switch c.mark {
	case MarkBold:
		n.Bold = !n.Bold
	case MarkItalic:
		n.Italic = !n.Italic
	}
}

type setBlockTypeCmd struct {
	id        NodeID
	toKind    string
	toLevel   int
	fromKind  string
	fromLevel int
}

func (c *setBlockTypeCmd) apply(d *Doc) {
	if n := d.Node(c.id); n != nil {
		n.Kind = c.toKind
		n.Level = c.toLevel
	}
}

func (c *setBlockTypeCmd) revert(d *Doc) {
	if n := d.Node(c.id); n != nil {
		n.Kind = c.fromKind
		n.Level = c.fromLevel
	}
}

type appendTextCmd struct {
	block NodeID
	node  Node
	id    NodeID
}

func (c *appendTextCmd) apply(d *Doc) {
	if c.id == NoNode {
		c.id = d.alloc(c.node)
	}
	if b := d.Node(c.block); b != nil {
		d.insertChild(c.block, len(b.Children), c.id)
	}
}

func (c *appendTextCmd) revert(d *Doc) {
	d.removeChild(c.block, c.id)
}
