package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Kind is the way an uploaded file is answered
type Kind int

const (
	// KindText files are sent to the model together with the question
	KindText Kind = iota
	// KindTable files are loaded into data_table and queried with generated SQL
	KindTable
)

var (
	ErrUnsupportedType = errors.New("unsupported file type (want .txt, .md or .csv)")
	ErrEmpty           = errors.New("file is empty")
	ErrTooLarge        = errors.New("file exceeds the upload limit")
)

// Extensions lists the accepted upload extensions
var Extensions = []string{".txt", ".md", ".csv"}

func (k Kind) String() string {
	if k == KindTable {
		return "table"
	}
	return "text"
}

// Document is an uploaded file after classification
type Document struct {
	Name string
	Kind Kind
	Data []byte
}

// Classify decides how a file is answered from its extension
func Classify(name string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return KindTable, nil
	case ".txt", ".md":
		return KindText, nil
	default:
		return 0, fmt.Errorf("%s: %w", name, ErrUnsupportedType)
	}
}

// Read classifies name and reads at most limit bytes from r.
// A limit <= 0 disables the size check.
func Read(name string, r io.Reader, limit int64) (*Document, error) {
	kind, err := Classify(name)
	if err != nil {
		return nil, err
	}

	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("%s: %w", name, ErrTooLarge)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrEmpty)
	}

	return &Document{Name: filepath.Base(name), Kind: kind, Data: data}, nil
}

// Text returns the content decoded as UTF-8, replacing invalid sequences
func (d *Document) Text() string {
	return strings.ToValidUTF8(string(d.Data), "\uFFFD")
}

// Reader returns a fresh reader over the content
func (d *Document) Reader() io.Reader {
	return bytes.NewReader(d.Data)
}
