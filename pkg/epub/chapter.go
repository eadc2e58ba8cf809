package epub

import (
	"fmt"
	"log"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/go-shiori/go-readability"
)

var (
	linkTagRe     = regexp.MustCompile(`(?is)<link\b[^>]*>`)
	relAttrRe     = attrPattern("rel")
	headCloseRe   = regexp.MustCompile(`(?i)</head>`)
	titleTagRe    = regexp.MustCompile(`(?is)<title\b[^>]*>(.*?)</title>`)
	scriptBlockRe = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	styleBlockRe  = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style>`)
	anyTagRe      = regexp.MustCompile(`(?s)<[^>]*>`)
	spaceRunRe    = regexp.MustCompile(`[ \t\r\f\v]+`)
)

// ChapterExtractor resolves manifest entries into chapter content.
// Logger is used for non-fatal warnings (missing stylesheets, skipped
// spine entries); nil means no logging.
type ChapterExtractor struct {
	Archive Archive
	Logger  *log.Logger
}

// NewChapterExtractor creates an extractor reading from the given archive.
func NewChapterExtractor(a Archive) *ChapterExtractor {
	return &ChapterExtractor{Archive: a}
}

// ExtractChapter reads the content document for one manifest item.
// Linked stylesheets are inlined as <style> blocks; a stylesheet missing
// from the archive is logged and skipped.
func (e *ChapterExtractor) ExtractChapter(pkg *DocumentPackage, itemID string) (*Chapter, error) {
	item, ok := pkg.Manifest[itemID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrChapterNotFound, itemID)
	}
	content, err := e.Archive.ReadText(item.Href)
	if err != nil {
		return nil, fmt.Errorf("read chapter %q: %w", item.Href, err)
	}

	content = e.inlineStylesheets(content, path.Dir(item.Href))

	title := itemID
	if m := titleTagRe.FindStringSubmatch(content); m != nil {
		if t := strings.TrimSpace(decodeEntities(m[1])); t != "" {
			title = t
		}
	}

	orderIndex := -1
	for i, ref := range pkg.Spine {
		if ref.ItemID == itemID {
			orderIndex = i
			break
		}
	}

	ch := &Chapter{
		ID:         itemID,
		Title:      title,
		OrderIndex: orderIndex,
		Content:    content,
		SourceHref: item.Href,
	}
	ch.WordCount = len(strings.Fields(StripMarkup(content)))
	return ch, nil
}

// ExtractAllLinear extracts every linear spine entry in reading order.
// An entry that fails to extract is logged and omitted; it does not abort
// the pass. Non-linear entries are skipped but remain addressable through
// ExtractChapter.
func (e *ChapterExtractor) ExtractAllLinear(pkg *DocumentPackage) []*Chapter {
	var chapters []*Chapter
	for _, ref := range pkg.Spine {
		if !ref.Linear {
			continue
		}
		ch, err := e.ExtractChapter(pkg, ref.ItemID)
		if err != nil {
			if e.Logger != nil {
				e.Logger.Printf("Warning: skipping spine entry %q: %v", ref.ItemID, err)
			}
			continue
		}
		ch.OrderIndex = len(chapters)
		chapters = append(chapters, ch)
	}
	return chapters
}

// inlineStylesheets replaces <link rel="stylesheet"> references with the
// referenced CSS as an inline <style> block so the chapter is
// self-contained.
func (e *ChapterExtractor) inlineStylesheets(content, baseDir string) string {
	var styles []string
	content = linkTagRe.ReplaceAllStringFunc(content, func(tag string) string {
		rel := strings.ToLower(attrOf(tag, relAttrRe))
		if !strings.Contains(rel, "stylesheet") {
			return tag
		}
		href := attrOf(tag, hrefAttrRe)
		if href == "" {
			return ""
		}
		css, err := e.Archive.ReadText(resolveHref(baseDir, href))
		if err != nil {
			if e.Logger != nil {
				e.Logger.Printf("Warning: stylesheet %q not found, chapter renders without it", href)
			}
			return ""
		}
		styles = append(styles, css)
		return ""
	})
	if len(styles) == 0 {
		return content
	}
	block := "<style>\n" + strings.Join(styles, "\n") + "\n</style>"
	if loc := headCloseRe.FindStringIndex(content); loc != nil {
		return content[:loc[0]] + block + content[loc[0]:]
	}
	return block + content
}

// PlainText extracts readable text from the chapter markup for analysis.
// Readability handles full documents well; anything it rejects falls back
// to a plain tag strip.
func (e *ChapterExtractor) PlainText(ch *Chapter) string {
	fakeURL, _ := url.Parse("http://localhost/" + ch.SourceHref)
	article, err := readability.FromReader(strings.NewReader(ch.Content), fakeURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return article.TextContent
	}
	return StripMarkup(ch.Content)
}

// StripMarkup removes tags and decodes entities, leaving plain text.
// Script and style bodies are dropped entirely.
func StripMarkup(content string) string {
	s := scriptBlockRe.ReplaceAllString(content, " ")
	s = styleBlockRe.ReplaceAllString(s, " ")
	s = anyTagRe.ReplaceAllString(s, " ")
	s = decodeEntities(s)
	s = spaceRunRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
