package sources

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/Rishika-Mashetty/second-brain/internal/engine"
	"github.com/dyatlov/go-opengraph/opengraph"
	"golang.org/x/net/html"
)

// Rendered-DOM helpers shared by the browser-based extractors. The
// heuristics are plain data so they can be tuned and tested against
// frozen fixtures without touching extractor control flow.

// pageDoc is a parsed DOM snapshot plus its Open Graph metadata.
type pageDoc struct {
	doc *goquery.Document
	og  *opengraph.OpenGraph
}

func parsePage(raw string) (*pageDoc, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, err
	}
	og := opengraph.NewOpenGraph()
	if err := og.ProcessHTML(strings.NewReader(raw)); err != nil {
		og = opengraph.NewOpenGraph()
	}
	return &pageDoc{doc: doc, og: og}, nil
}

// firstText returns the trimmed text of the first element matching any
// selector, tried in order.
func (p *pageDoc) firstText(selectors ...string) string {
	for _, sel := range selectors {
		if t := strings.TrimSpace(p.doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

// firstAttr returns attr of the first element matching sel.
func (p *pageDoc) firstAttr(sel, attr string) string {
	v, _ := p.doc.Find(sel).First().Attr(attr)
	return strings.TrimSpace(v)
}

func (p *pageDoc) ogVideo() string {
	for _, v := range p.og.Videos {
		if v != nil && v.URL != "" {
			return v.URL
		}
	}
	return ""
}

// walkText concatenates every text node under the first container
// matching one of selectors (the body when none match), keeping
// fragments longer than minLen after trimming.
func (p *pageDoc) walkText(selectors []string, minLen int) string {
	var root *html.Node
	for _, sel := range selectors {
		if s := p.doc.Find(sel).First(); s.Length() > 0 {
			root = s.Nodes[0]
			break
		}
	}
	if root == nil {
		if s := p.doc.Find("body").First(); s.Length() > 0 {
			root = s.Nodes[0]
		}
	}
	if root == nil {
		return ""
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); len([]rune(t)) > minLen {
				sb.WriteString(t)
				sb.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return sb.String()
}

// CaptionHeuristics decides which visible text blocks form a caption.
type CaptionHeuristics struct {
	Markers   []string       // substrings that qualify a block (matched as-is)
	Qualify   *regexp.Regexp // blocks matching this qualify
	Keywords  []string       // case-insensitive substrings that qualify a block
	MinLength int            // blocks longer than this qualify on length alone
	Exclude   *regexp.Regexp // page chrome; matching blocks are dropped
	Strip     []*regexp.Regexp
}

// DefaultCaptionHeuristics matches Instagram's public post page.
var DefaultCaptionHeuristics = CaptionHeuristics{
	Markers:   []string{"#"},
	Qualify:   regexp.MustCompile(`\p{Sc}`),
	Keywords:  []string{"follow"},
	MinLength: 10,
	Exclude:   regexp.MustCompile(`(?i)Instagram|Reels|Followed|Suggested`),
	Strip: []*regexp.Regexp{
		regexp.MustCompile(`(?i)Follow\s*@\w+`),
		regexp.MustCompile(`(?i)Add comment|Suggested for you`),
	},
}

var hashtagRe = regexp.MustCompile(`#\w+`)

// accepts reports whether a single text block belongs in the caption.
func (h CaptionHeuristics) accepts(t string) bool {
	if t == "" {
		return false
	}
	if h.Exclude != nil && h.Exclude.MatchString(t) {
		return false
	}
	if len([]rune(t)) > h.MinLength {
		return true
	}
	for _, m := range h.Markers {
		if strings.Contains(t, m) {
			return true
		}
	}
	if h.Qualify != nil && h.Qualify.MatchString(t) {
		return true
	}
	lower := strings.ToLower(t)
	for _, k := range h.Keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// caption assembles a caption from the text of every element matching sel.
func (h CaptionHeuristics) caption(p *pageDoc, sel string) string {
	var parts []string
	p.doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); h.accepts(t) {
			parts = append(parts, t)
		}
	})
	caption := engine.CollapseSpace(strings.Join(parts, " "))
	for _, re := range h.Strip {
		caption = re.ReplaceAllString(caption, "")
	}
	return strings.TrimSpace(caption)
}

// extractHashtags returns the #tags found in s, space separated.
func extractHashtags(s string) string {
	return strings.Join(hashtagRe.FindAllString(s, -1), " ")
}
