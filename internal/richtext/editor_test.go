package richtext

import (
	"errors"
	"strings"
	"testing"
)

func TestInsertImageDefaults(t *testing.T) {
	e := NewEditor()
	e.InsertText("look at this")

	id, ok := e.InsertImage("https://cdn.example.com/photo.png")
	if !ok {
		t.Fatal("image insertion failed")
	}

	n := e.Doc().Node(id)
	if n.Width != DefaultWidth {
		t.Errorf("expected default width %d, got %d", DefaultWidth, n.Width)
	}
	if n.Align != AlignLeft {
		t.Errorf("expected default alignment left, got %q", n.Align)
	}
	if !e.Doc().Attached(id) {
		t.Error("inserted image not attached to tree")
	}
}

func TestInsertMediaWithoutCursor(t *testing.T) {
	e := NewEditor()
	e.ClearCursor()

	before, err := e.Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	if _, ok := e.InsertImage("https://cdn.example.com/photo.png"); ok {
		t.Error("insertion should be a no-op without a cursor")
	}
	if _, ok := e.InsertVideo("https://cdn.example.com/clip.mp4", "video/mp4"); ok {
		t.Error("video insertion should be a no-op without a cursor")
	}

	after, err := e.Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	if before.Markup != after.Markup {
		t.Error("document changed despite no-op insertion")
	}
}

func TestInsertMediaEmptySrc(t *testing.T) {
	e := NewEditor()
	if _, ok := e.InsertImage(""); ok {
		t.Error("insertion with empty src should be rejected")
	}
}

func TestMediaUploadSingleSlot(t *testing.T) {
	e := NewEditor()

	if err := e.BeginMediaUpload(); err != nil {
		t.Fatalf("BeginMediaUpload failed: %v", err)
	}
	if err := e.BeginMediaUpload(); !errors.Is(err, ErrUploadInFlight) {
		t.Errorf("expected ErrUploadInFlight, got %v", err)
	}

	// Direct insertion is blocked while the slot is held.
	if _, ok := e.InsertImage("https://cdn.example.com/early.png"); ok {
		t.Error("insertion should be blocked during upload")
	}
	// Text editing is not.
	if id := e.InsertText("still typing"); id == NoNode {
		t.Error("text editing should continue during upload")
	}

	id, ok := e.CompleteMediaUpload(KindImage, "https://cdn.example.com/done.png", "")
	if !ok {
		t.Fatal("CompleteMediaUpload failed")
	}
	if !e.Doc().Attached(id) {
		t.Error("uploaded image not attached")
	}

	if err := e.BeginMediaUpload(); err != nil {
		t.Errorf("slot should be free after completion: %v", err)
	}
}

func TestAbortMediaUploadLeavesNoTrace(t *testing.T) {
	e := NewEditor()
	before, _ := e.Serialize()

	if err := e.BeginMediaUpload(); err != nil {
		t.Fatalf("BeginMediaUpload failed: %v", err)
	}
	e.AbortMediaUpload()

	after, _ := e.Serialize()
	if before.Markup != after.Markup {
		t.Error("aborted upload left a partial insertion")
	}
	if err := e.BeginMediaUpload(); err != nil {
		t.Errorf("slot should be free after abort: %v", err)
	}
}

func TestSetSizeClamps(t *testing.T) {
	e := NewEditor()
	id, _ := e.InsertImage("https://cdn.example.com/a.png")
	e.Select(id)

	if !e.SetSize(150) {
		t.Fatal("SetSize failed")
	}
	if e.Size() != MaxWidth {
		t.Errorf("expected clamp to %d, got %d", MaxWidth, e.Size())
	}
	if e.Doc().Node(id).Width != MaxWidth {
		t.Errorf("node width not clamped, got %d", e.Doc().Node(id).Width)
	}

	e.SetSize(5)
	if e.Doc().Node(id).Width != MinWidth {
		t.Errorf("expected clamp to %d, got %d", MinWidth, e.Doc().Node(id).Width)
	}
}

func TestSetSizeWithoutSelection(t *testing.T) {
	e := NewEditor()
	if e.SetSize(50) {
		t.Error("SetSize should fail without a selection")
	}
}

func TestSetAlignInvalidValueIgnored(t *testing.T) {
	e := NewEditor()
	id, _ := e.InsertImage("https://cdn.example.com/a.png")
	e.Select(id)

	if e.SetAlign("justify") {
		t.Error("invalid alignment should be rejected")
	}
	if e.Doc().Node(id).Align != AlignLeft {
		t.Errorf("alignment changed by invalid value: %q", e.Doc().Node(id).Align)
	}
}

func TestSelectPrimesControls(t *testing.T) {
	e := NewEditor()
	id, _ := e.InsertVideo("https://cdn.example.com/clip.mp4", "video/mp4")
	e.Select(id)
	e.SetSize(40)
	e.SetAlign(AlignRight)

	// Selecting something else clears, re-selecting re-primes.
	e.Select(e.Cursor())
	if _, ok := e.Selection(); ok {
		t.Error("selecting a non-media node should clear the selection")
	}

	e.Select(id)
	if e.Size() != 40 {
		t.Errorf("size control not primed, got %d", e.Size())
	}
	if e.Align() != AlignRight {
		t.Errorf("align control not primed, got %q", e.Align())
	}
}

func TestAlignUndoRestoresAttribute(t *testing.T) {
	e := NewEditor()
	id, _ := e.InsertImage("https://cdn.example.com/a.png")
	e.Select(id)

	if !e.SetAlign(AlignCenter) {
		t.Fatal("SetAlign failed")
	}
	content, _ := e.Serialize()
	if !strings.Contains(content.Markup, `"textAlign":"center"`) {
		t.Errorf("markup missing centered alignment: %s", content.Markup)
	}

	if !e.Undo() {
		t.Fatal("Undo failed")
	}
	if e.Doc().Node(id).Align != AlignLeft {
		t.Errorf("undo did not restore alignment, got %q", e.Doc().Node(id).Align)
	}
	if e.Align() != AlignLeft {
		t.Errorf("align control not refreshed after undo, got %q", e.Align())
	}

	if !e.Redo() {
		t.Fatal("Redo failed")
	}
	if e.Doc().Node(id).Align != AlignCenter {
		t.Errorf("redo did not reapply alignment, got %q", e.Doc().Node(id).Align)
	}
}

func TestUndoInsertClearsSelection(t *testing.T) {
	e := NewEditor()
	id, _ := e.InsertImage("https://cdn.example.com/a.png")
	e.Select(id)

	if !e.Undo() {
		t.Fatal("Undo failed")
	}
	if e.Doc().Attached(id) {
		t.Error("image still attached after undoing its insertion")
	}
	if _, ok := e.Selection(); ok {
		t.Error("selection should clear when the node detaches")
	}
}

func TestSelectDetachedMediaIgnored(t *testing.T) {
	e := NewEditor()
	id, _ := e.InsertImage("https://cdn.example.com/a.png")

	if !e.Undo() {
		t.Fatal("Undo failed")
	}
	e.Select(id)

	if _, ok := e.Selection(); ok {
		t.Error("detached media node should not be selectable")
	}
	if e.SetSize(40) {
		t.Error("SetSize should fail with no selection")
	}
	if e.SetAlign(AlignCenter) {
		t.Error("SetAlign should fail with no selection")
	}
}

func TestUndoRedoRestoresTree(t *testing.T) {
	e := NewEditor()
	e.InsertText("hello")
	e.InsertParagraph("world")
	snapshot, _ := e.Serialize()

	if !e.Undo() {
		t.Fatal("Undo failed")
	}
	if !e.Redo() {
		t.Fatal("Redo failed")
	}

	restored, _ := e.Serialize()
	if restored.Markup != snapshot.Markup {
		t.Errorf("redo did not restore tree:\n%s\n%s", snapshot.Markup, restored.Markup)
	}
}

func TestNewEditClearsRedo(t *testing.T) {
	e := NewEditor()
	e.InsertText("one")
	e.Undo()
	e.InsertText("two")

	if e.Redo() {
		t.Error("redo should be cleared by a fresh edit")
	}
}

func TestToggleMarkUndo(t *testing.T) {
	e := NewEditor()
	id := e.InsertText("emphasis")

	if !e.ToggleMark(id, MarkBold) {
		t.Fatal("ToggleMark failed")
	}
	if !e.Doc().Node(id).Bold {
		t.Error("bold not applied")
	}

	e.Undo()
	if e.Doc().Node(id).Bold {
		t.Error("bold not reverted by undo")
	}
}

func TestSetBlockTypeUndo(t *testing.T) {
	e := NewEditor()
	para := e.Cursor()

	if !e.SetBlockType(para, KindHeading, 1) {
		t.Fatal("SetBlockType failed")
	}
	if e.Doc().Node(para).Kind != KindHeading {
		t.Errorf("block kind not changed, got %q", e.Doc().Node(para).Kind)
	}

	e.Undo()
	if e.Doc().Node(para).Kind != KindParagraph {
		t.Errorf("undo did not restore paragraph, got %q", e.Doc().Node(para).Kind)
	}
}

func TestSaveSingleFlight(t *testing.T) {
	e := NewEditor()
	if err := e.BeginSave(); err != nil {
		t.Fatalf("BeginSave failed: %v", err)
	}
	if err := e.BeginSave(); !errors.Is(err, ErrSaveInFlight) {
		t.Errorf("expected ErrSaveInFlight, got %v", err)
	}
	e.EndSave()
	if err := e.BeginSave(); err != nil {
		t.Errorf("slot should be free after EndSave: %v", err)
	}
}
