package pdfcheck

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/avolkov/filingdesk/internal/core/domain"
)

var (
	ErrNotPDF   = errors.New("not a pdf file")
	ErrTooLarge = errors.New("file too large")
	ErrEmpty    = errors.New("file is empty")
)

var pdfMagic = []byte("%PDF-")

// Inspector rejects non-PDF uploads before any byte leaves the machine. It
// checks the extension, the magic header, and finally asks the parser to walk
// the cross-reference table; a truncated body fails there.
type Inspector struct {
	maxSize int64
}

// New creates an Inspector. maxSize <= 0 disables the size cap.
func New(maxSize int64) *Inspector {
	return &Inspector{maxSize: maxSize}
}

func (i *Inspector) Inspect(filename string, content domain.FileContent, size int64) error {
	if size == 0 {
		return ErrEmpty
	}
	if i.maxSize > 0 && size > i.maxSize {
		return fmt.Errorf("%w: %d bytes over %d limit", ErrTooLarge, size, i.maxSize)
	}
	if ext := strings.ToLower(filepath.Ext(filename)); ext != ".pdf" {
		return fmt.Errorf("%w: extension %q", ErrNotPDF, ext)
	}

	header := make([]byte, len(pdfMagic))
	if _, err := content.ReadAt(header, 0); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if !bytes.Equal(header, pdfMagic) {
		return fmt.Errorf("%w: missing %%PDF header", ErrNotPDF)
	}

	return parseStructure(content, size)
}

// parseStructure runs the parser under recover: the library panics on some
// malformed inputs instead of returning an error.
func parseStructure(content domain.FileContent, size int64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrNotPDF, r)
		}
	}()
	if _, parseErr := pdf.NewReader(content, size); parseErr != nil {
		return fmt.Errorf("%w: %v", ErrNotPDF, parseErr)
	}
	return nil
}
