package extract

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// PDFExtractor pulls embedded text out of a PDF's content streams.
type PDFExtractor struct {
	logger *zap.Logger
}

// Extract returns the document's plain text, or "" when the PDF cannot
// be parsed. The pdf library panics on some malformed inputs, so the
// whole pass runs under a recover.
func (e *PDFExtractor) Extract(name string, data []byte) (text string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("pdf extraction panicked",
				zap.String("name", name),
				zap.Any("panic", r))
			text = ""
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		e.logger.Warn("failed to open pdf", zap.String("name", name), zap.Error(err))
		return ""
	}

	var sb strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Warn("failed to extract pdf page text",
				zap.String("name", name),
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}
		sb.WriteString(content)
		sb.WriteString("\n")
	}

	return sb.String()
}
