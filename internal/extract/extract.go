// Package extract turns uploaded resume and job description files into plain text.
package extract

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"aligncv/internal/errors"
	"aligncv/internal/utils"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"golang.org/x/text/encoding/charmap"
)

var xmlTag = regexp.MustCompile(`<[^>]+>`)

// Text extracts plain text from data, choosing the parser by the file
// extension of filename.
func Text(filename string, data []byte) (string, error) {
	ext := utils.GetFileExtension(filename)
	switch {
	case ext == ".pdf":
		return pdfText(data)
	case ext == ".docx":
		return docxText(data)
	case utils.IsTextFile(filename):
		return decodeText(data), nil
	default:
		return "", errors.NewValidationError(errors.ErrCodeUnsupportedFileType,
			fmt.Sprintf("Unsupported file type: %s", ext), nil).
			WithContext("filename", filename)
	}
}

// Supported reports whether Text can handle filename.
func Supported(filename string) bool {
	ext := utils.GetFileExtension(filename)
	return ext == ".pdf" || ext == ".docx" || utils.IsTextFile(filename)
}

// decodeText reads data as UTF-8 and falls back to Latin-1 when it is not
// valid UTF-8.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}

func pdfText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errors.NewValidationError(errors.ErrCodeInvalidFormat,
			"Failed to read PDF document", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", errors.NewValidationError(errors.ErrCodeInvalidFormat,
				fmt.Sprintf("Failed to read PDF page %d", i), err)
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func docxText(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errors.NewValidationError(errors.ErrCodeInvalidFormat,
			"Failed to parse DOCX document", err)
	}
	defer func() { _ = doc.Close() }()

	return documentXMLText(doc.Editable().GetContent()), nil
}

// documentXMLText renders WordprocessingML body XML as text, one line per
// paragraph.
func documentXMLText(content string) string {
	replacer := strings.NewReplacer(
		"</w:p>", "\n",
		"<w:tab/>", "\t",
		"<w:br/>", "\n",
	)
	text := xmlTag.ReplaceAllString(replacer.Replace(content), "")
	return html.UnescapeString(text)
}
