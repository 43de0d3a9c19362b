package docparse

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"

	"ticketforge/internal/types"
	"ticketforge/internal/utils"
)

const (
	MIMEText = "text/plain"
	MIMEPDF  = "application/pdf"
	MIMEMD   = "text/markdown"
)

// Input is either pre-extracted text or raw file bytes with an optional
// MIME hint and file name.
type Input struct {
	Text     string
	Data     []byte
	MIME     string
	FileName string
}

// DetectMIME resolves the media type from the hint, then the file
// extension, then the content itself.
func DetectMIME(in Input) string {
	if m := baseMIME(in.MIME); m != "" {
		return m
	}
	switch strings.ToLower(filepath.Ext(in.FileName)) {
	case ".pdf":
		return MIMEPDF
	case ".md", ".markdown":
		return MIMEMD
	case ".txt", ".text":
		return MIMEText
	}
	if len(in.Data) > 0 {
		return baseMIME(mimetype.Detect(in.Data).String())
	}
	return MIMEText
}

func baseMIME(m string) string {
	m = strings.ToLower(strings.TrimSpace(m))
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = strings.TrimSpace(m[:i])
	}
	return m
}

// Parse returns the plain text of the document. Anything other than text or
// PDF is rejected with an *types.InputError.
func Parse(in Input) (string, error) {
	if in.Data == nil {
		text := strings.TrimSpace(in.Text)
		if text == "" {
			return "", &types.InputError{Reason: "document is empty"}
		}
		return text, nil
	}

	mime := DetectMIME(in)
	var (
		text string
		err  error
	)
	switch {
	case mime == MIMEPDF:
		text, err = pdfText(in.Data)
	case strings.HasPrefix(mime, "text/"):
		if !utf8.Valid(in.Data) {
			return "", &types.InputError{Reason: "text document is not valid UTF-8"}
		}
		text = string(in.Data)
		if mime == MIMEMD {
			text = utils.CleanMarkdown(text)
		}
	default:
		return "", &types.InputError{Reason: fmt.Sprintf("unsupported format %q", mime)}
	}
	if err != nil {
		return "", &types.InputError{Reason: err.Error()}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &types.InputError{Reason: "document contains no extractable text"}
	}
	return text, nil
}

func pdfText(data []byte) (text string, err error) {
	// The pdf reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("read pdf: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	return string(b), nil
}
