package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"contract-qa-platform/internal/logger"

	"github.com/ledongthuc/pdf"
)

// maxInMemorySize caps files read fully into memory for extraction
const maxInMemorySize = 200 << 20

var (
	ErrNotPDF   = errors.New("file is not a PDF")
	ErrTooLarge = errors.New("pdf too large for in-memory extraction")
)

// PageText is the plain text of one page. Number is 1-based.
type PageText struct {
	Number int
	Text   string
}

// Result is the outcome of extracting a PDF file
type Result struct {
	Pages          []PageText
	Size           int64
	Info           map[string]string
	FailedPages    []int
	ProcessingTime time.Duration
}

// ValidateHeader checks the %PDF magic bytes and rewinds the reader
func ValidateHeader(r io.ReadSeeker) error {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return ErrNotPDF
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind upload: %w", err)
	}
	if !bytes.Equal(header, []byte("%PDF")) {
		return ErrNotPDF
	}
	return nil
}

// Extract reads every page of the file. A page whose text cannot be decoded
// is kept as an empty page so numbering stays aligned with the PDF.
func Extract(ctx context.Context, filePath string) (*Result, error) {
	start := time.Now()

	stat, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat PDF file: %w", err)
	}
	if stat.Size() > maxInMemorySize {
		return nil, ErrTooLarge
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF file: %w", err)
	}
	if err := ValidateHeader(bytes.NewReader(content)); err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	result := &Result{
		Size: stat.Size(),
		Info: documentInfo(reader),
	}

	numPages := reader.NumPage()
	result.Pages = make([]PageText, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := pageText(reader, i)
		if err != nil {
			logger.Warn("Failed to extract page text", "file", filePath, "page", i, "error", err)
			result.FailedPages = append(result.FailedPages, i)
			text = ""
		}
		result.Pages = append(result.Pages, PageText{Number: i, Text: cleanText(text)})
	}

	result.ProcessingTime = time.Since(start)
	return result, nil
}

// pageText recovers from panics raised by malformed page streams
func pageText(reader *pdf.Reader, n int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", n, r)
		}
	}()

	page := reader.Page(n)
	if page.V.IsNull() {
		return "", nil
	}

	fonts := make(map[string]*pdf.Font)
	return page.GetPlainText(fonts)
}

func documentInfo(reader *pdf.Reader) (info map[string]string) {
	defer func() {
		if recover() != nil {
			info = nil
		}
	}()

	dict := reader.Trailer().Key("Info")
	if dict.IsNull() {
		return nil
	}

	info = map[string]string{}
	for _, key := range []string{"Title", "Author", "Subject", "Creator", "Producer", "CreationDate"} {
		if v := strings.TrimSpace(dict.Key(key).Text()); v != "" {
			info[key] = v
		}
	}
	if len(info) == 0 {
		return nil
	}
	return info
}

func cleanText(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}
