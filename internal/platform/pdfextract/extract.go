// Package pdfextract pulls page counts and raw text out of uploaded PDF
// blobs. Extraction never fails the caller: any unreadable document (encrypted,
// scanned without a text layer, corrupt stream) yields a deterministic
// fallback block so the pipeline can persist a diagnostic record.
package pdfextract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// FileMeta describes the blob being extracted. It is echoed into the header
// banner and the fallback block.
type FileMeta struct {
	Name     string
	Path     string
	MIMEType string
	Size     int64
}

// Result is what extraction produces. Failed indicates the fallback path was
// taken; Text is always non-empty.
type Result struct {
	PageCount int
	Text      string
	Failed    bool
	Reason    string
}

// Extract reads the PDF blob and returns its page count plus the text
// recovered from every page's content stream, wrapped in a header banner.
func Extract(blob []byte, meta FileMeta) Result {
	if len(blob) == 0 {
		return fallback(meta, "empty file contents")
	}

	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(blob), conf)
	if err != nil {
		return fallback(meta, fmt.Sprintf("unreadable PDF: %v", err))
	}

	pageCount := pdfCtx.PageCount
	if pageCount == 0 {
		return fallback(meta, "PDF contains no pages")
	}

	var body strings.Builder
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		r, err := pdfcpu.ExtractPageContent(pdfCtx, pageNum)
		if err != nil || r == nil {
			// A single unreadable page degrades to a marker, not a failure.
			fmt.Fprintf(&body, "[page %d: no extractable text]\n", pageNum)
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil {
			fmt.Fprintf(&body, "[page %d: no extractable text]\n", pageNum)
			continue
		}
		text := scanContentText(content)
		if strings.TrimSpace(text) == "" {
			fmt.Fprintf(&body, "[page %d: no extractable text]\n", pageNum)
			continue
		}
		body.WriteString(text)
		if !strings.HasSuffix(text, "\n") {
			body.WriteByte('\n')
		}
	}

	return Result{
		PageCount: pageCount,
		Text:      banner(meta, pageCount) + body.String(),
	}
}

func banner(meta FileMeta, pages int) string {
	return fmt.Sprintf("==== %s ====\nPath: %s\nType: %s\nPages: %d\n====\n",
		meta.Name, meta.Path, meta.MIMEType, pages)
}

// fallback builds the deterministic failure block. It always contains the file
// path, byte size, and MIME type so operators can identify the document.
func fallback(meta FileMeta, reason string) Result {
	text := fmt.Sprintf(
		"==== DOCUMENT TEXT UNAVAILABLE ====\nExtraction failed: %s\nFile: %s\nSize: %d bytes\nType: %s\n====\n",
		reason, meta.Path, meta.Size, meta.MIMEType)
	return Result{PageCount: 0, Text: text, Failed: true, Reason: reason}
}

// scanContentText walks a decoded PDF content stream and collects the string
// operands of text-showing operators. Literal strings appear parenthesized
// with backslash escapes; text-positioning operators (Td, TD, T*) and ET mark
// line boundaries.
func scanContentText(content []byte) string {
	var out strings.Builder
	var line strings.Builder

	flushLine := func() {
		if line.Len() > 0 {
			out.WriteString(strings.TrimRight(line.String(), " "))
			out.WriteByte('\n')
			line.Reset()
		}
	}

	i := 0
	for i < len(content) {
		c := content[i]
		switch {
		case c == '(':
			s, next := readLiteralString(content, i)
			line.WriteString(s)
			line.WriteByte(' ')
			i = next
		case c == '%':
			// Comment runs to end of line.
			for i < len(content) && content[i] != '\n' {
				i++
			}
		default:
			if isOperatorStart(c) {
				op, next := readOperator(content, i)
				switch op {
				case "Td", "TD", "T*", "ET":
					flushLine()
				}
				i = next
			} else {
				i++
			}
		}
	}
	flushLine()
	return out.String()
}

// readLiteralString consumes a parenthesized PDF string starting at open. It
// honors \-escapes and balanced nested parentheses, returning the decoded
// text and the index past the closing paren.
func readLiteralString(content []byte, open int) (string, int) {
	var s strings.Builder
	depth := 0
	i := open
	for i < len(content) {
		c := content[i]
		switch c {
		case '\\':
			if i+1 < len(content) {
				switch content[i+1] {
				case 'n':
					s.WriteByte('\n')
				case 't':
					s.WriteByte('\t')
				case 'r', 'f', 'b':
					// Ignored control escapes.
				default:
					s.WriteByte(content[i+1])
				}
				i += 2
				continue
			}
			i++
		case '(':
			if depth > 0 {
				s.WriteByte(c)
			}
			depth++
			i++
		case ')':
			depth--
			if depth == 0 {
				return s.String(), i + 1
			}
			s.WriteByte(c)
			i++
		default:
			s.WriteByte(c)
			i++
		}
	}
	return s.String(), i
}

func isOperatorStart(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '*' || c == '\''
}

func readOperator(content []byte, start int) (string, int) {
	i := start
	for i < len(content) {
		c := content[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '*' || c == '\'' {
			i++
			continue
		}
		break
	}
	return string(content[start:i]), i
}
