package epub

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"
)

// pointerPath is the fixed location of the pointer file inside the container.
const pointerPath = "META-INF/container.xml"

// Real-world package documents deviate from strict schema constantly, so the
// parser is a set of independent, attribute-order-agnostic scans with
// fallback chains instead of an XML tree walk. A file that a conformant
// parser would reject still imports as long as the fields we need are
// recognizable.
var (
	rootfileTagRe   = regexp.MustCompile(`(?is)<rootfile\b[^>]*>`)
	packageTagRe    = regexp.MustCompile(`(?is)<(?:\w+:)?package\b[^>]*>`)
	metadataBlockRe = regexp.MustCompile(`(?is)<(?:\w+:)?metadata\b[^>]*>(.*?)</(?:\w+:)?metadata>`)
	manifestBlockRe = regexp.MustCompile(`(?is)<(?:\w+:)?manifest\b[^>]*>(.*?)</(?:\w+:)?manifest>`)
	spineBlockRe    = regexp.MustCompile(`(?is)(<(?:\w+:)?spine\b[^>]*>)(.*?)</(?:\w+:)?spine>`)
	itemTagRe       = regexp.MustCompile(`(?is)<item\b[^>]*>`)
	itemrefTagRe    = regexp.MustCompile(`(?is)<itemref\b[^>]*>`)

	// The cover meta tag appears with name/content in either order.
	metaCoverNameFirstRe    = regexp.MustCompile(`(?is)<meta\b[^>]*\bname\s*=\s*["']cover["'][^>]*\bcontent\s*=\s*["']([^"']+)["']`)
	metaCoverContentFirstRe = regexp.MustCompile(`(?is)<meta\b[^>]*\bcontent\s*=\s*["']([^"']+)["'][^>]*\bname\s*=\s*["']cover["']`)
)

func attrPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\s*=\s*["']([^"']*)["']`)
}

var (
	fullPathAttrRe   = attrPattern("full-path")
	versionAttrRe    = attrPattern("version")
	uniqueIDAttrRe   = attrPattern("unique-identifier")
	idAttrRe         = attrPattern("id")
	hrefAttrRe       = attrPattern("href")
	mediaTypeAttrRe  = attrPattern("media-type")
	propertiesAttrRe = attrPattern("properties")
	idrefAttrRe      = attrPattern("idref")
	linearAttrRe     = attrPattern("linear")
	tocAttrRe        = attrPattern("toc")
)

func attrOf(tag string, re *regexp.Regexp) string {
	m := re.FindStringSubmatch(tag)
	if m == nil {
		return ""
	}
	return m[1]
}

// tagScanner extracts the text content of a metadata tag, trying the
// namespaced form (<dc:title>) before the bare form (<title>).
type tagScanner struct {
	ns   *regexp.Regexp
	bare *regexp.Regexp
}

func newTagScanner(name string) tagScanner {
	q := regexp.QuoteMeta(name)
	return tagScanner{
		ns:   regexp.MustCompile(`(?is)<\w+:` + q + `\b[^>]*>(.*?)</\w+:` + q + `>`),
		bare: regexp.MustCompile(`(?is)<` + q + `\b[^>]*>(.*?)</` + q + `>`),
	}
}

func (s tagScanner) first(block string) string {
	if m := s.ns.FindStringSubmatch(block); m != nil {
		return strings.TrimSpace(decodeEntities(m[1]))
	}
	if m := s.bare.FindStringSubmatch(block); m != nil {
		return strings.TrimSpace(decodeEntities(m[1]))
	}
	return ""
}

func (s tagScanner) all(block string) []string {
	matches := s.ns.FindAllStringSubmatch(block, -1)
	if len(matches) == 0 {
		matches = s.bare.FindAllStringSubmatch(block, -1)
	}
	var out []string
	for _, m := range matches {
		if v := strings.TrimSpace(decodeEntities(m[1])); v != "" {
			out = append(out, v)
		}
	}
	return out
}

var (
	titleScan       = newTagScanner("title")
	creatorScan     = newTagScanner("creator")
	languageScan    = newTagScanner("language")
	identifierScan  = newTagScanner("identifier")
	publisherScan   = newTagScanner("publisher")
	dateScan        = newTagScanner("date")
	descriptionScan = newTagScanner("description")
	rightsScan      = newTagScanner("rights")
	subjectScan     = newTagScanner("subject")
	contributorScan = newTagScanner("contributor")
)

// Open parses the given bytes as a compressed e-book container and returns
// its package structure.
func Open(containerBytes []byte) (*DocumentPackage, error) {
	a, err := NewZipArchive(containerBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedContainer, err)
	}
	return OpenArchive(a)
}

// OpenArchive parses the container through the supplied Archive. The parse
// is pure: nothing outside the archive is touched.
func OpenArchive(a Archive) (*DocumentPackage, error) {
	pointer, err := readPointerFile(a)
	if err != nil {
		return nil, err
	}

	rootTag := rootfileTagRe.FindString(pointer)
	opfPath := attrOf(rootTag, fullPathAttrRe)
	if opfPath == "" {
		return nil, fmt.Errorf("%w: no rootfile full-path", ErrMalformedContainer)
	}
	opfPath = path.Clean(decodeEntities(opfPath))

	opf, err := a.ReadText(opfPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrMissingPackageDocument, opfPath)
	}

	pkg := &DocumentPackage{
		Manifest: make(map[string]ManifestItem),
		OPFPath:  opfPath,
	}

	pkgTag := packageTagRe.FindString(opf)
	pkg.Version = attrOf(pkgTag, versionAttrRe)
	pkg.UniqueID = attrOf(pkgTag, uniqueIDAttrRe)

	metadataBlock := ""
	if m := metadataBlockRe.FindStringSubmatch(opf); m != nil {
		metadataBlock = m[1]
	}
	pkg.Metadata = parseMetadata(metadataBlock)

	baseDir := path.Dir(opfPath)
	if m := manifestBlockRe.FindStringSubmatch(opf); m != nil {
		parseManifest(m[1], baseDir, pkg)
	}

	spineToc := ""
	if m := spineBlockRe.FindStringSubmatch(opf); m != nil {
		spineToc = attrOf(m[1], tocAttrRe)
		parseSpine(m[2], pkg)
	}

	pkg.TOCItemID = findTOC(pkg, spineToc)
	pkg.CoverItemID = findCover(pkg, metadataBlock)

	return pkg, nil
}

func readPointerFile(a Archive) (string, error) {
	if text, err := a.ReadText(pointerPath); err == nil {
		return text, nil
	}
	// Some producers get the case wrong; accept any case-insensitive match.
	for _, name := range a.List() {
		if strings.EqualFold(name, pointerPath) {
			if text, err := a.ReadText(name); err == nil {
				return text, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s absent", ErrMalformedContainer, pointerPath)
}

func parseMetadata(block string) Metadata {
	md := Metadata{
		Title:        titleScan.first(block),
		Creator:      creatorScan.first(block),
		Language:     languageScan.first(block),
		Identifier:   identifierScan.first(block),
		Publisher:    publisherScan.first(block),
		Date:         dateScan.first(block),
		Description:  descriptionScan.first(block),
		Rights:       rightsScan.first(block),
		Subjects:     subjectScan.all(block),
		Contributors: contributorScan.all(block),
	}
	if md.Title == "" {
		md.Title = "Untitled"
	}
	return md
}

func parseManifest(block, baseDir string, pkg *DocumentPackage) {
	for _, tag := range itemTagRe.FindAllString(block, -1) {
		id := attrOf(tag, idAttrRe)
		href := attrOf(tag, hrefAttrRe)
		if id == "" || href == "" {
			continue
		}
		if _, exists := pkg.Manifest[id]; exists {
			// First occurrence wins; duplicate ids violate the package
			// invariant and are ignored.
			continue
		}
		pkg.Manifest[id] = ManifestItem{
			ID:         id,
			Href:       resolveHref(baseDir, href),
			MediaType:  attrOf(tag, mediaTypeAttrRe),
			Properties: attrOf(tag, propertiesAttrRe),
		}
	}
}

func parseSpine(block string, pkg *DocumentPackage) {
	for _, tag := range itemrefTagRe.FindAllString(block, -1) {
		idref := attrOf(tag, idrefAttrRe)
		if idref == "" {
			continue
		}
		if _, ok := pkg.Manifest[idref]; !ok {
			// Reading-order ids must exist in the manifest; drop strays.
			continue
		}
		linear := !strings.EqualFold(attrOf(tag, linearAttrRe), "no")
		pkg.Spine = append(pkg.Spine, SpineRef{ItemID: idref, Linear: linear})
	}
}

func findTOC(pkg *DocumentPackage, spineToc string) string {
	for _, id := range sortedManifestIDs(pkg) {
		if propertiesContain(pkg.Manifest[id].Properties, "nav") {
			return id
		}
	}
	if spineToc != "" {
		if _, ok := pkg.Manifest[spineToc]; ok {
			return spineToc
		}
	}
	for _, id := range sortedManifestIDs(pkg) {
		item := pkg.Manifest[id]
		if item.MediaType == "application/x-dtbncx+xml" || strings.HasSuffix(strings.ToLower(item.Href), ".ncx") {
			return id
		}
	}
	return ""
}

func findCover(pkg *DocumentPackage, metadataBlock string) string {
	for _, id := range sortedManifestIDs(pkg) {
		if propertiesContain(pkg.Manifest[id].Properties, "cover-image") {
			return id
		}
	}
	coverID := ""
	if m := metaCoverNameFirstRe.FindStringSubmatch(metadataBlock); m != nil {
		coverID = m[1]
	} else if m := metaCoverContentFirstRe.FindStringSubmatch(metadataBlock); m != nil {
		coverID = m[1]
	}
	if coverID != "" {
		if _, ok := pkg.Manifest[coverID]; ok {
			return coverID
		}
	}
	for _, id := range sortedManifestIDs(pkg) {
		item := pkg.Manifest[id]
		if strings.Contains(strings.ToLower(id), "cover") && strings.HasPrefix(item.MediaType, "image/") {
			return id
		}
	}
	return ""
}

func sortedManifestIDs(pkg *DocumentPackage) []string {
	ids := make([]string, 0, len(pkg.Manifest))
	for id := range pkg.Manifest {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func propertiesContain(properties, want string) bool {
	for _, p := range strings.Fields(properties) {
		if p == want {
			return true
		}
	}
	return false
}

func resolveHref(baseDir, href string) string {
	href = decodeEntities(href)
	if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}
	if strings.HasPrefix(href, "/") {
		return strings.TrimPrefix(path.Clean(href), "/")
	}
	if baseDir == "." || baseDir == "" {
		return path.Clean(href)
	}
	return path.Join(baseDir, href)
}
