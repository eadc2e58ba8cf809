package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"sort"
)

// Archive is the narrow view of a compressed container the extractor needs.
// The surrounding app supplies the real file/archive layer; tests supply maps.
type Archive interface {
	List() []string
	ReadText(path string) (string, error)
	ReadBytes(path string) ([]byte, error)
}

// ZipArchive reads entries from an in-memory zip buffer.
type ZipArchive struct {
	files map[string]*zip.File
	names []string
}

// NewZipArchive opens the given bytes as a zip container.
func NewZipArchive(data []byte) (*ZipArchive, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip container: %w", err)
	}
	files := make(map[string]*zip.File, len(r.File))
	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		files[f.Name] = f
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return &ZipArchive{files: files, names: names}, nil
}

// List returns the entry paths in sorted order.
func (z *ZipArchive) List() []string {
	out := make([]string, len(z.names))
	copy(out, z.names)
	return out
}

// ReadBytes returns the decompressed contents of the named entry.
func (z *ZipArchive) ReadBytes(path string) ([]byte, error) {
	f, ok := z.files[path]
	if !ok {
		return nil, fmt.Errorf("entry %q not found in archive", path)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry %q: %w", path, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read entry %q: %w", path, err)
	}
	return data, nil
}

// ReadText returns the entry contents as a UTF-8 string.
func (z *ZipArchive) ReadText(path string) (string, error) {
	b, err := z.ReadBytes(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
