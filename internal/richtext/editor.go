package richtext

import "errors"

var (
	// ErrUploadInFlight is returned when a media upload is started while
	// another one has not finished.
	ErrUploadInFlight = errors.New("media upload already in flight")
	// ErrSaveInFlight is returned when a save is started while another
	// one has not completed. Saves replace content wholesale and must
	// not interleave.
	ErrSaveInFlight = errors.New("save already in flight")
)

// Selection is the editor's transient media selection. It is a node
// reference, never serialized.
type Selection struct {
	Node NodeID
	Kind string
}

// Editor drives all mutations of a greeting document for a single
// authoring session. It is not safe for concurrent use; the guards it
// carries (upload, save) serialize re-entrant flows within one session,
// not concurrent writers.
type Editor struct {
	doc    *Doc
	hist   history
	cursor NodeID

	sel   Selection
	size  int
	align Align

	uploading bool
	saving    bool
}

// NewEditor returns an editor over a fresh document with the cursor in
// its initial paragraph.
func NewEditor() *Editor {
	doc := NewDoc()
	e := &Editor{doc: doc, sel: Selection{Node: NoNode}}
	root := doc.Node(doc.Root())
	if len(root.Children) > 0 {
		e.cursor = root.Children[0]
	} else {
		e.cursor = NoNode
	}
	return e
}

// NewEditorFromMarkup loads a previously serialized document for
// further editing. The cursor starts in the last block.
func NewEditorFromMarkup(markup string) (*Editor, error) {
	doc, err := Deserialize(markup)
	if err != nil {
		return nil, err
	}
	e := &Editor{doc: doc, cursor: NoNode, sel: Selection{Node: NoNode}}
	root := doc.Node(doc.Root())
	if len(root.Children) > 0 {
		e.cursor = root.Children[len(root.Children)-1]
	}
	return e, nil
}

// Doc exposes the underlying tree, the single source of truth for
// authored content.
func (e *Editor) Doc() *Doc { return e.doc }

func (e *Editor) run(c command) {
	c.apply(e.doc)
	e.hist.push(c)
}

// SetCursor places the cursor on a block node. Non-block or detached
// targets are ignored.
func (e *Editor) SetCursor(id NodeID) bool {
	n := e.doc.Node(id)
	if n == nil || !n.IsBlock() || !e.doc.Attached(id) {
		return false
	}
	e.cursor = id
	return true
}

// ClearCursor removes the cursor context; media insertion becomes a
// no-op until a cursor is set again.
func (e *Editor) ClearCursor() { e.cursor = NoNode }

// Cursor returns the block currently holding the cursor.
func (e *Editor) Cursor() NodeID { return e.cursor }

// InsertParagraph appends a paragraph after the cursor block (or at the
// end of the document) and moves the cursor into it.
func (e *Editor) InsertParagraph(text string) NodeID {
	index := e.rootInsertIndex()
	cmd := newInsertNodeCmd(e.doc.Root(), index, Node{Kind: KindParagraph})
	e.run(cmd)
	if text != "" {
		e.run(&appendTextCmd{block: cmd.id, node: Node{Kind: KindText, Text: text}, id: NoNode})
	}
	e.cursor = cmd.id
	return cmd.id
}

// InsertText appends a text run to the cursor block. Returns NoNode
// when there is no cursor.
func (e *Editor) InsertText(text string) NodeID {
	if e.cursor == NoNode || text == "" {
		return NoNode
	}
	cmd := &appendTextCmd{block: e.cursor, node: Node{Kind: KindText, Text: text}, id: NoNode}
	e.run(cmd)
	return cmd.id
}

// ToggleMark flips bold or italic on a text node.
func (e *Editor) ToggleMark(id NodeID, mark Mark) bool {
	n := e.doc.Node(id)
	if n == nil || n.Kind != KindText {
		return false
	}
	e.run(&toggleMarkCmd{id: id, mark: mark})
	return true
}

// SetBlockType changes a block's kind (paragraph, heading, lists,
// blockquote). level is only meaningful for headings.
func (e *Editor) SetBlockType(id NodeID, kind string, level int) bool {
	n := e.doc.Node(id)
	if n == nil || !n.IsBlock() {
		return false
	}
	switch kind {
	case KindParagraph, KindHeading, KindBulletList, KindOrderedList, KindBlockquote:
	default:
		return false
	}
	if kind != KindHeading {
		level = 0
	}
	e.run(&setBlockTypeCmd{id: id, toKind: kind, toLevel: level, fromKind: n.Kind, fromLevel: n.Level})
	return true
}

// BeginMediaUpload reserves the single upload slot. Further media
// insertion attempts are rejected until the upload finishes or aborts;
// text editing is unaffected.
func (e *Editor) BeginMediaUpload() error {
	if e.uploading {
		return ErrUploadInFlight
	}
	e.uploading = true
	return nil
}

// AbortMediaUpload releases the upload slot without touching the tree.
// A failed upload never leaves a partial insertion behind.
func (e *Editor) AbortMediaUpload() { e.uploading = false }

// CompleteMediaUpload inserts the uploaded media at the cursor and
// releases the upload slot.
func (e *Editor) CompleteMediaUpload(kind, src, contentType string) (NodeID, bool) {
	e.uploading = false
	return e.insertMedia(kind, src, contentType)
}

// InsertImage inserts an image node with default attributes at the
// cursor. No cursor context makes this a no-op.
func (e *Editor) InsertImage(src string) (NodeID, bool) {
	return e.insertMedia(KindImage, src, "")
}

// InsertVideo inserts a video node with default attributes at the
// cursor, recording the content type for playback hinting.
func (e *Editor) InsertVideo(src, contentType string) (NodeID, bool) {
	return e.insertMedia(KindVideo, src, contentType)
}

func (e *Editor) insertMedia(kind, src, contentType string) (NodeID, bool) {
	if e.cursor == NoNode || src == "" {
		return NoNode, false
	}
	if e.uploading {
		return NoNode, false
	}
	if kind != KindImage && kind != KindVideo {
		return NoNode, false
	}
	node := Node{
		Kind:  kind,
		Src:   src,
		Width: DefaultWidth,
		Align: AlignLeft,
	}
	if kind == KindVideo {
		node.ContentType = contentType
	}
	cmd := newInsertNodeCmd(e.doc.Root(), e.rootInsertIndex(), node)
	e.run(cmd)
	return cmd.id, true
}

// rootInsertIndex resolves where a new top-level block lands relative
// to the cursor.
func (e *Editor) rootInsertIndex() int {
	root := e.doc.Node(e.doc.Root())
	if e.cursor == NoNode {
		return len(root.Children)
	}
	if i := e.doc.childIndex(e.doc.Root(), e.cursor); i >= 0 {
		return i + 1
	}
	return len(root.Children)
}

// Select points the attribute editor at a media node and primes the
// size/align controls from its attributes. Selecting anything else
// clears the selection.
func (e *Editor) Select(id NodeID) {
	n := e.doc.Node(id)
	if n == nil || !n.IsMedia() || !e.doc.Attached(id) {
		e.sel = Selection{Node: NoNode}
		e.size = 0
		e.align = ""
		return
	}
	e.sel = Selection{Node: id, Kind: n.Kind}
	e.size = n.Width
	e.align = n.Align
}

// Selection returns the current media selection, if any.
func (e *Editor) Selection() (Selection, bool) {
	return e.sel, e.sel.Node != NoNode
}

// Size returns the width control value mirroring the selected node.
func (e *Editor) Size() int { return e.size }

// Align returns the alignment control value mirroring the selected node.
func (e *Editor) Align() Align { return e.align }

// SetSize sets the selected media node's width, clamped to
// [MinWidth, MaxWidth]. The mutation goes through the command path and
// participates in undo like any other edit.
func (e *Editor) SetSize(w int) bool {
	if e.sel.Node == NoNode {
		return false
	}
	n := e.doc.Node(e.sel.Node)
	if n == nil || !n.IsMedia() {
		return false
	}
	clamped := ClampWidth(w)
	if clamped == n.Width {
		e.size = clamped
		return true
	}
	e.run(&setWidthCmd{id: e.sel.Node, to: clamped, from: n.Width})
	e.size = clamped
	return true
}

// SetAlign sets the selected media node's alignment. Values outside
// {left, center, right} are ignored with no state change.
func (e *Editor) SetAlign(a Align) bool {
	if e.sel.Node == NoNode || !ValidAlign(a) {
		return false
	}
	n := e.doc.Node(e.sel.Node)
	if n == nil || !n.IsMedia() {
		return false
	}
	if a == n.Align {
		e.align = a
		return true
	}
	e.run(&setAlignCmd{id: e.sel.Node, to: a, from: n.Align})
	e.align = a
	return true
}

// Undo reverts the most recent command. The attribute controls are
// re-primed when the selected node's attributes changed underneath.
func (e *Editor) Undo() bool {
	c := e.hist.popUndo()
	if c == nil {
		return false
	}
	c.revert(e.doc)
	e.refreshSelection()
	return true
}

// Redo re-applies the most recently undone command.
func (e *Editor) Redo() bool {
	c := e.hist.popRedo()
	if c == nil {
		return false
	}
	c.apply(e.doc)
	e.refreshSelection()
	return true
}

func (e *Editor) refreshSelection() {
	if e.sel.Node == NoNode {
		return
	}
	n := e.doc.Node(e.sel.Node)
	if n == nil || !n.IsMedia() || !e.doc.Attached(e.sel.Node) {
		e.sel = Selection{Node: NoNode}
		e.size = 0
		e.align = ""
		return
	}
	e.size = n.Width
	e.align = n.Align
}

// BeginSave reserves the single save slot; a second save before the
// first completes is rejected rather than interleaved.
func (e *Editor) BeginSave() error {
	if e.saving {
		return ErrSaveInFlight
	}
	e.saving = true
	return nil
}

// EndSave releases the save slot.
func (e *Editor) EndSave() { e.saving = false }

// Serialize produces the persisted content pair from the current tree.
func (e *Editor) Serialize() (Content, error) {
	return Serialize(e.doc)
}
