package extract

import (
	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"
)

// ImageExtractor runs OCR over an image document.
type ImageExtractor struct {
	logger *zap.Logger
}

// Extract returns the recognized text, or "" when OCR fails. A client is
// created per call; tesseract handles are not safe for concurrent use.
func (e *ImageExtractor) Extract(name string, data []byte) string {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetImageFromBytes(data); err != nil {
		e.logger.Warn("failed to load image for ocr", zap.String("name", name), zap.Error(err))
		return ""
	}

	text, err := client.Text()
	if err != nil {
		e.logger.Warn("ocr failed", zap.String("name", name), zap.Error(err))
		return ""
	}

	return text
}
