package indexer

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DetectFormat picks the extractor for a fetched document from its leading
// bytes, then its content type, then its URL extension.
func DetectFormat(rawURL, contentType string, content []byte) Format {
	if bytes.HasPrefix(content, []byte("%PDF-")) {
		return FormatPDF
	}

	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mediaType {
		case "application/pdf":
			return FormatPDF
		case "text/markdown", "text/x-markdown":
			return FormatMarkdown
		}
	}

	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".pdf":
		return FormatPDF
	case ".md", ".markdown":
		return FormatMarkdown
	}
	return FormatText
}

// ExtractText returns the document title (empty when the format has none) and its plain text.
func ExtractText(content []byte, format Format) (title, body string, err error) {
	switch format {
	case FormatPDF:
		body, err = pdfText(content)
		if err != nil {
			return "", "", err
		}
		return "", CleanText(body), nil
	case FormatMarkdown:
		title, body = markdownText(content)
		return title, CleanText(body), nil
	case FormatText:
		return "", CleanText(string(content)), nil
	default:
		return "", "", fmt.Errorf("unsupported format %q", format)
	}
}

func pdfText(content []byte) (text string, err error) {
	// The pdf reader panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to parse pdf: %v", r)
		}
	}()

	rdr, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	plain, err := rdr.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("failed to read pdf buffer: %w", err)
	}
	return buf.String(), nil
}
