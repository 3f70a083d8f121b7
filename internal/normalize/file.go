package normalize

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/chatbot-admin/backend/internal/storage/models"
)

// ErrUnsupportedFormat is returned for file types outside the supported set.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ExtractionError reports a PDF/DOCX extractor failure. NormalizeFile does not
// return it; it is attached to the result next to the placeholder text so the
// caller can decide between indexing the placeholder or marking the document
// as failed.
type ExtractionError struct {
	Format string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s extraction failed: %v", e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// PDFExtractor returns the plain text of a PDF file.
type PDFExtractor func(data []byte) (string, error)

type FileMetadata struct {
	Title     string `json:"title"`
	FileType  string `json:"file_type"`
	FileSize  int64  `json:"file_size"`
	WordCount int    `json:"word_count"`
}

type NormalizedFile struct {
	Content  string       `json:"content"`
	Metadata FileMetadata `json:"metadata"`
	// ExtractionErr is set when Content is a diagnostic placeholder.
	ExtractionErr error `json:"-"`
}

type FileNormalizer struct {
	extractPDF PDFExtractor
}

// NewFileNormalizer builds a normalizer. A nil extractor selects the built-in
// PDF text extractor.
func NewFileNormalizer(extractPDF PDFExtractor) *FileNormalizer {
	if extractPDF == nil {
		extractPDF = ExtractPDFText
	}
	return &FileNormalizer{extractPDF: extractPDF}
}

var mimeExtensions = map[string]string{
	"text/plain":       models.FileTypeTXT,
	"text/markdown":    models.FileTypeMD,
	"text/x-markdown":  models.FileTypeMD,
	"text/csv":         models.FileTypeCSV,
	"application/json": models.FileTypeJSON,
	"application/pdf":  models.FileTypePDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": models.FileTypeDOCX,
}

// ResolveFileType picks the file type from the filename extension, falling
// back to the declared type (an extension or a MIME type).
func ResolveFileType(filename, declaredType string) string {
	if ext := strings.TrimPrefix(filepath.Ext(filename), "."); ext != "" {
		return strings.ToLower(ext)
	}

	declared := strings.ToLower(strings.TrimSpace(declaredType))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if ext, ok := mimeExtensions[declared]; ok {
		return ext
	}
	if declared == models.FileTypeText {
		return models.FileTypeTXT
	}
	return strings.TrimPrefix(declared, ".")
}

// NormalizeFile converts uploaded bytes into sanitized text plus metadata.
func (n *FileNormalizer) NormalizeFile(data []byte, filename, declaredType string) (*NormalizedFile, error) {
	fileType := ResolveFileType(filename, declaredType)

	var (
		text       string
		extractErr error
	)

	switch fileType {
	case models.FileTypeTXT, models.FileTypeMD, models.FileTypeJSON, models.FileTypeCSV:
		text = string(data)

	case models.FileTypePDF:
		var err error
		text, err = n.safeExtractPDF(data)
		if err != nil {
			extractErr = &ExtractionError{Format: models.FileTypePDF, Err: err}
			text = fmt.Sprintf("PDF Document: %s\n\nError processing PDF: %v", filename, err)
		}

	case models.FileTypeDOCX:
		var err error
		text, err = extractDOCXText(data)
		if err != nil {
			extractErr = &ExtractionError{Format: models.FileTypeDOCX, Err: err}
			text = fmt.Sprintf("DOCX Document: %s\n\nNote: DOCX text extraction requires additional setup. For now, this is a placeholder.", filename)
		}

	default:
		if fileType == "" {
			return nil, fmt.Errorf("%w: missing file extension", ErrUnsupportedFormat)
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, fileType)
	}

	content := Sanitize(text)

	return &NormalizedFile{
		Content: content,
		Metadata: FileMetadata{
			Title:     filename,
			FileType:  fileType,
			FileSize:  int64(len(data)),
			WordCount: WordCount(content),
		},
		ExtractionErr: extractErr,
	}, nil
}

func (n *FileNormalizer) safeExtractPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()
	return n.extractPDF(data)
}

// ExtractPDFText reads the text layer of a PDF.
func ExtractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}

	return buf.String(), nil
}

// extractDOCXText collects the w:t runs of word/document.xml, one line per
// w:p paragraph.
func extractDOCXText(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("not a docx archive: %w", err)
	}

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open document.xml: %w", err)
		}
		defer rc.Close()

		return parseDocumentXML(rc)
	}

	return "", errors.New("word/document.xml not found")
}

func parseDocumentXML(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var (
		out    strings.Builder
		inText bool
	)

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse document.xml: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				out.WriteByte('\t')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				out.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				out.Write(t)
			}
		}
	}

	return strings.TrimSpace(out.String()), nil
}
