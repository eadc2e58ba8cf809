package epub

// Metadata holds the Dublin-Core style fields found in the package document.
// Only Title is guaranteed; everything else is best-effort.
type Metadata struct {
	Title        string
	Creator      string
	Language     string
	Identifier   string
	Publisher    string
	Date         string
	Description  string
	Rights       string
	Subjects     []string
	Contributors []string
}

// ManifestItem is one entry of the package manifest. Href is already
// resolved against the package document's directory.
type ManifestItem struct {
	ID         string
	Href       string
	MediaType  string
	Properties string
}

// SpineRef is one entry of the reading order.
type SpineRef struct {
	ItemID string
	Linear bool
}

// DocumentPackage is the parsed structure of one e-book container:
// metadata, manifest, reading order and the navigation/cover references.
type DocumentPackage struct {
	Version     string
	UniqueID    string
	Metadata    Metadata
	Manifest    map[string]ManifestItem
	Spine       []SpineRef
	TOCItemID   string
	CoverItemID string
	// OPFPath is the archive path of the package document the rest was
	// parsed from; hrefs are resolved relative to its directory.
	OPFPath string
}

// Chapter is one extracted content document. Immutable once extracted.
type Chapter struct {
	ID         string
	Title      string
	OrderIndex int
	Content    string
	WordCount  int
	SourceHref string
}

// ExtractorError is a typed error for structural extraction failures.
type ExtractorError struct{ msg string }

func (e *ExtractorError) Error() string { return e.msg }

var (
	// ErrMalformedContainer means the pointer file is absent or its
	// rootfile reference could not be found.
	ErrMalformedContainer = &ExtractorError{"malformed container: missing or unparseable pointer file"}
	// ErrMissingPackageDocument means the pointer file referenced a
	// package document that is not in the archive.
	ErrMissingPackageDocument = &ExtractorError{"missing package document"}
	// ErrChapterNotFound means the requested item id is not in the manifest.
	ErrChapterNotFound = &ExtractorError{"chapter not found in manifest"}
)
