package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"livestock/app/middleware"
	"livestock/loader/service"
	"livestock/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type DocumentService interface {
	IngestFile(ctx context.Context, req service.IngestRequest) (*service.IngestResult, error)
	ListDocuments(ctx context.Context, owner types.Owner) ([]types.Document, error)
	DeleteDocument(ctx context.Context, docID uuid.UUID, actor types.Owner) (*types.Document, int64, error)
}

type FileHandler struct {
	docs      DocumentService
	uploadDir string
	maxBytes  int64
}

func NewFileHandler(docs DocumentService, uploadDir string, maxBytes int64) *FileHandler {
	return &FileHandler{
		docs:      docs,
		uploadDir: uploadDir,
		maxBytes:  maxBytes,
	}
}

type DocumentView struct {
	ID           uuid.UUID `json:"id"`
	OriginalName string    `json:"original_name"`
	FileSize     int64     `json:"file_size"`
	TotalChunks  int       `json:"total_chunks"`
	Description  string    `json:"description"`
	UploadedAt   string    `json:"uploaded_at"`
}

func newDocumentView(d types.Document) DocumentView {
	return DocumentView{
		ID:           d.ID,
		OriginalName: d.OriginalName,
		FileSize:     d.FileSize,
		TotalChunks:  d.TotalChunks,
		Description:  d.Description,
		UploadedAt:   d.UploadedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// HandleUpload stores a PDF under the upload dir and ingests it for the farmer.
func (h *FileHandler) HandleUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("pdf")
	if err != nil {
		return NewError(fiber.StatusBadRequest, "no PDF file uploaded")
	}
	if fileHeader.Size > h.maxBytes {
		return NewError(fiber.StatusRequestEntityTooLarge,
			fmt.Sprintf("file is too large, limit is %d MB", h.maxBytes>>20))
	}
	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".pdf") {
		return NewError(fiber.StatusBadRequest, "only PDF files are allowed")
	}

	var params types.UploadParams
	params.Description = c.FormValue("description")
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	stored := uuid.NewString() + ".pdf"
	path := filepath.Join(h.uploadDir, stored)
	if err := c.SaveFile(fileHeader, path); err != nil {
		return err
	}
	log.Printf("[UPLOAD] File saved to: %s", path)

	res, err := h.docs.IngestFile(c.UserContext(), service.IngestRequest{
		Path:         path,
		Filename:     stored,
		OriginalName: fileHeader.Filename,
		Description:  params.Description,
		Owner:        types.UserOwner(middleware.UserID(c)),
	})
	if err != nil {
		removeStored(path)
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":       true,
		"message":       "PDF processed successfully",
		"document":      newDocumentView(res.Document),
		"chunks":        res.Document.TotalChunks,
		"chunks_failed": res.ChunksFailed,
	})
}

func (h *FileHandler) HandleList(c *fiber.Ctx) error {
	docs, err := h.docs.ListDocuments(c.UserContext(), types.UserOwner(middleware.UserID(c)))
	if err != nil {
		return err
	}
	views := make([]DocumentView, len(docs))
	for i, d := range docs {
		views[i] = newDocumentView(d)
	}
	return c.JSON(fiber.Map{"documents": views})
}

func (h *FileHandler) HandleDelete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}

	doc, removed, err := h.docs.DeleteDocument(c.UserContext(), id, types.UserOwner(middleware.UserID(c)))
	if err != nil {
		return err
	}
	removeStored(filepath.Join(h.uploadDir, filepath.Base(doc.Filename)))

	return c.JSON(fiber.Map{
		"success":        true,
		"message":        "Document deleted successfully",
		"chunks_deleted": removed,
	})
}

func removeStored(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[UPLOAD] Failed to remove %s: %v", path, err)
	}
}
