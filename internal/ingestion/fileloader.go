package ingestion

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	docxlib "github.com/fumiama/go-docx"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/agu-rag/backend/internal/knowledge"
	"github.com/agu-rag/backend/pkg/logger"
)

// FileLoader reads institutional PDF and DOCX files (FAQs, regulations,
// handbooks) into documents. PDFs get page locators, DOCX files get
// paragraph locators, both stable across re-ingestion.
type FileLoader struct{}

func NewFileLoader() *FileLoader {
	return &FileLoader{}
}

// LoadDir walks a directory and loads every supported file. Unreadable
// files are logged and skipped.
func (f *FileLoader) LoadDir(dir string) ([]knowledge.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read documents directory: %w", err)
	}

	var docs []knowledge.Document
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		var fileDocs []knowledge.Document

		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".pdf":
			fileDocs, err = f.LoadPDF(path)
		case ".docx":
			fileDocs, err = f.LoadDOCX(path)
		default:
			continue
		}

		if err != nil {
			logger.Error("Failed to load file", zap.String("path", path), zap.Error(err))
			continue
		}

		logger.Info("File loaded", zap.String("path", path), zap.Int("blocks", len(fileDocs)))
		docs = append(docs, fileDocs...)
	}

	return docs, nil
}

// LoadPDF emits one document per non-empty page, keyed by page number.
func (f *FileLoader) LoadPDF(path string) ([]knowledge.Document, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer file.Close()

	source := filepath.Base(path)
	var docs []knowledge.Document

	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			logger.Warn("Failed to extract pdf page",
				zap.String("path", path),
				zap.Int("page", pageNum),
				zap.Error(err),
			)
			continue
		}

		text = strings.TrimSpace(text)
		if len(text) <= minBlockLen {
			continue
		}

		p := pageNum
		docs = append(docs, knowledge.Document{
			Source:      source,
			Content:     text,
			SourceType:  knowledge.SourcePDF,
			SectionType: "page",
			Page:        &p,
		})
	}

	return docs, nil
}

// LoadDOCX emits one document per non-empty paragraph, keyed by paragraph
// number in document order.
func (f *FileLoader) LoadDOCX(path string) ([]knowledge.Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open docx: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat docx: %w", err)
	}

	parsed, err := docxlib.Parse(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to parse docx: %w", err)
	}

	source := filepath.Base(path)
	var docs []knowledge.Document
	paragraph := 0

	for _, item := range parsed.Document.Body.Items {
		para, ok := item.(*docxlib.Paragraph)
		if !ok {
			continue
		}

		text := strings.TrimSpace(para.String())
		if len(text) <= minBlockLen {
			continue
		}

		paragraph++
		p := paragraph
		docs = append(docs, knowledge.Document{
			Source:      source,
			Content:     text,
			SourceType:  knowledge.SourceDOCX,
			SectionType: "paragraph",
			Paragraph:   &p,
		})
	}

	return docs, nil
}
