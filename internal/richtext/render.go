package richtext

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// renderPolicy is the sanitizer applied at the render boundary. Stored
// markup is only ever produced by Serialize, but the rendered HTML is
// injected into viewer pages as trusted content, so everything passes
// through bluemonday before leaving this package.
var renderPolicy = buildRenderPolicy()

var widthStylePattern = regexp.MustCompile(`^\d{1,3}%$`)

func buildRenderPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").OnElements("div", "img", "video")
	p.AllowElements("video", "source")
	p.AllowAttrs("controls").OnElements("video")
	p.AllowAttrs("src", "type").OnElements("source")
	p.AllowStyles("text-align").MatchingEnum("left", "center", "right").OnElements("div")
	p.AllowStyles("width").Matching(widthStylePattern).OnElements("img", "video")
	return p
}

// RenderHTML converts canonical markup into sanitized HTML for viewing.
// The playback element for videos is derived from the tree node here;
// it is never an independently mutable surface.
func RenderHTML(markup string) (string, error) {
	d, err := Deserialize(markup)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	root := d.Node(d.Root())
	for _, child := range root.Children {
		renderNode(d, child, &b)
	}
	return renderPolicy.Sanitize(b.String()), nil
}

func renderNode(d *Doc, id NodeID, b *strings.Builder) {
	n := d.Node(id)
	if n == nil {
		return
	}
	switch n.Kind {
	case KindParagraph:
		b.WriteString("<p>")
		renderChildren(d, n, b)
		b.WriteString("</p>\n")
	case KindHeading:
		level := n.Level
		if level < 1 || level > 6 {
			level = 1
		}
		fmt.Fprintf(b, "<h%d>", level)
		renderChildren(d, n, b)
		fmt.Fprintf(b, "</h%d>\n", level)
	case KindBulletList:
		b.WriteString("<ul>\n")
		renderChildren(d, n, b)
		b.WriteString("</ul>\n")
	case KindOrderedList:
		b.WriteString("<ol>\n")
		renderChildren(d, n, b)
		b.WriteString("</ol>\n")
	case KindListItem:
		b.WriteString("<li>")
		renderChildren(d, n, b)
		b.WriteString("</li>\n")
	case KindBlockquote:
		b.WriteString("<blockquote>\n")
		renderChildren(d, n, b)
		b.WriteString("</blockquote>\n")
	case KindText:
		text := html.EscapeString(n.Text)
		if n.Italic {
			text = "<em>" + text + "</em>"
		}
		if n.Bold {
			text = "<strong>" + text + "</strong>"
		}
		b.WriteString(text)
	case KindImage:
		fmt.Fprintf(b,
			`<div class="media-wrapper" style="text-align: %s"><img src="%s" class="rounded-lg" style="width: %d%%"></div>`+"\n",
			n.Align, html.EscapeString(n.Src), ClampWidth(n.Width))
	case KindVideo:
		contentType := n.ContentType
		if contentType == "" {
			contentType = "video/mp4"
		}
		fmt.Fprintf(b,
			`<div class="media-wrapper" style="text-align: %s"><video controls class="rounded-lg" style="width: %d%%"><source src="%s" type="%s"></video></div>`+"\n",
			n.Align, ClampWidth(n.Width), html.EscapeString(n.Src), html.EscapeString(contentType))
	default:
		renderChildren(d, n, b)
	}
}

func renderChildren(d *Doc, n *Node, b *strings.Builder) {
	for _, child := range n.Children {
		renderNode(d, child, b)
	}
}
