package extract

import (
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Extractor produces plain text from a document blob. Extraction is
// best-effort: implementations return "" on any internal failure instead
// of propagating an error, so the upload pipeline is never aborted by a
// parser.
type Extractor interface {
	Extract(name string, data []byte) string
}

// DocumentExtractor routes a document to the extraction technique for
// its format: structural text extraction for PDFs, OCR for images.
// Unsupported formats yield empty text deterministically.
type DocumentExtractor struct {
	pdf    Extractor
	image  Extractor
	logger *zap.Logger
}

// New creates a DocumentExtractor with the default PDF and OCR backends
func New(logger *zap.Logger) *DocumentExtractor {
	return &DocumentExtractor{
		pdf:    &PDFExtractor{logger: logger},
		image:  &ImageExtractor{logger: logger},
		logger: logger,
	}
}

// Extract dispatches on the filename extension
func (e *DocumentExtractor) Extract(name string, data []byte) string {
	switch Format(name) {
	case FormatPDF:
		return e.pdf.Extract(name, data)
	case FormatImage:
		return e.image.Extract(name, data)
	default:
		e.logger.Debug("unsupported document format", zap.String("name", name))
		return ""
	}
}

// Document formats
const (
	FormatPDF         = "pdf"
	FormatImage       = "image"
	FormatUnsupported = "unsupported"
)

// Format classifies a document by filename extension
func Format(name string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "pdf":
		return FormatPDF
	case "jpg", "jpeg", "png":
		return FormatImage
	default:
		return FormatUnsupported
	}
}

// Supported reports whether the document format has an extraction backend
func Supported(name string) bool {
	return Format(name) != FormatUnsupported
}
