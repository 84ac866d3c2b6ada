package richtext

import (
	"strings"
	"testing"
)

func TestRenderHTMLImage(t *testing.T) {
	e := NewEditor()
	e.InsertText("caption below")
	id, _ := e.InsertImage("https://cdn.example.com/photo.png")
	e.Select(id)
	e.SetSize(60)
	e.SetAlign(AlignCenter)
	content, _ := e.Serialize()

	out, err := RenderHTML(content.Markup)
	if err != nil {
		t.Fatalf("RenderHTML failed: %v", err)
	}
	if !strings.Contains(out, `width: 60%`) {
		t.Errorf("rendered width missing: %s", out)
	}
	if !strings.Contains(out, `text-align: center`) {
		t.Errorf("rendered alignment missing: %s", out)
	}
	if !strings.Contains(out, `src="https://cdn.example.com/photo.png"`) {
		t.Errorf("image src missing: %s", out)
	}
}

func TestRenderHTMLVideoDerivedFromNode(t *testing.T) {
	e := NewEditor()
	id, _ := e.InsertVideo("https://cdn.example.com/clip.webm", "video/webm")
	e.Select(id)
	e.SetAlign(AlignRight)
	content, _ := e.Serialize()

	out, err := RenderHTML(content.Markup)
	if err != nil {
		t.Fatalf("RenderHTML failed: %v", err)
	}
	if !strings.Contains(out, "<video") || !strings.Contains(out, "<source") {
		t.Errorf("video element missing: %s", out)
	}
	if !strings.Contains(out, `type="video/webm"`) {
		t.Errorf("source type missing: %s", out)
	}
	if !strings.Contains(out, `text-align: right`) {
		t.Errorf("video alignment missing: %s", out)
	}
}

func TestRenderHTMLEscapesText(t *testing.T) {
	e := NewEditor()
	e.InsertText(`<script>alert("x")</script>`)
	content, _ := e.Serialize()

	out, err := RenderHTML(content.Markup)
	if err != nil {
		t.Fatalf("RenderHTML failed: %v", err)
	}
	if strings.Contains(out, "<script>") {
		t.Errorf("script tag survived sanitization: %s", out)
	}
}

func TestRenderHTMLMarks(t *testing.T) {
	e := NewEditor()
	id := e.InsertText("important")
	e.ToggleMark(id, MarkBold)
	e.ToggleMark(id, MarkItalic)
	content, _ := e.Serialize()

	out, err := RenderHTML(content.Markup)
	if err != nil {
		t.Fatalf("RenderHTML failed: %v", err)
	}
	if !strings.Contains(out, "<strong>") || !strings.Contains(out, "<em>") {
		t.Errorf("marks missing from rendered HTML: %s", out)
	}
}
