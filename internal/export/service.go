package export

import (
	"context"
	"fmt"

	"giftregistry/api/internal/registry"
)

// PDFRenderer prints an HTML page to PDF.
type PDFRenderer func(ctx context.Context, html string) ([]byte, error)

// Service provides gift list export functionality
type Service struct {
	renderPDF PDFRenderer
}

// NewService returns a service printing PDFs with headless Chrome.
func NewService() *Service {
	return &Service{renderPDF: chromePDF}
}

// NewServiceWithRenderer replaces the PDF backend.
func NewServiceWithRenderer(renderPDF PDFRenderer) *Service {
	return &Service{renderPDF: renderPDF}
}

// Export renders the published bundle of version in format.
func (s *Service) Export(ctx context.Context, version registry.VersionID, bundle registry.Bundle, format Format) (*Result, error) {
	sheet, err := BuildSheet(version, bundle)
	if err != nil {
		return nil, err
	}
	html, err := RenderSheetHTML(sheet)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	filename := sanitizeFilename(sheet.Title) + "-" + string(version)
	switch format {
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: filename + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		data, err := s.renderPDF(ctx, html)
		if err != nil {
			return nil, err
		}
		return &Result{
			Data:     data,
			Filename: filename + ".pdf",
			MimeType: "application/pdf",
		}, nil
	}
	return nil, ErrUnsupportedFormat
}
