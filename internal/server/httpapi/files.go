package httpapi

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sfstore/sfs/internal/server/models"
)

type fileResponse struct {
	ID              string    `json:"id"`
	BasketName      string    `json:"basket_name"`
	Filename        string    `json:"filename"`
	ContentType     string    `json:"content_type"`
	Size            int64     `json:"size"`
	Checksum        string    `json:"checksum"`
	StorageKey      string    `json:"storage_key"`
	IntegrityStatus string    `json:"integrity_status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toFileResponse(f *models.FileRecord) fileResponse {
	return fileResponse{
		ID:              f.ID,
		BasketName:      f.BasketName,
		Filename:        f.Filename,
		ContentType:     f.ContentType,
		Size:            f.Size,
		Checksum:        f.Checksum,
		StorageKey:      f.StorageKey,
		IntegrityStatus: f.IntegrityStatus,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
	}
}

// formFile extracts the multipart "file" field and its metadata.
func formFile(c echo.Context) (multipart.File, *multipart.FileHeader, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return nil, nil, err
	}
	src, err := header.Open()
	if err != nil {
		return nil, nil, err
	}
	return src, header, nil
}

func contentTypeOf(header *multipart.FileHeader) string {
	if ct := header.Header.Get(echo.HeaderContentType); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (s *Server) uploadFile(c echo.Context) error {
	src, header, err := formFile(c)
	if err != nil {
		return writeErrorCode(c, http.StatusBadRequest, codeInvalidFile, "file parameter is required")
	}
	defer src.Close()

	record, err := s.files.Upload(c.Request().Context(),
		c.Param("name"), header.Filename, contentTypeOf(header), src)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toFileResponse(record))
}

func (s *Server) listFiles(c echo.Context) error {
	limit, offset := pagination(c)

	list, err := s.files.List(c.Request().Context(), c.Param("name"), limit, offset)
	if err != nil {
		return writeError(c, err)
	}

	out := make([]fileResponse, 0, len(list))
	for _, f := range list {
		out = append(out, toFileResponse(f))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) getFile(c echo.Context) error {
	record, err := s.files.Get(c.Request().Context(), c.Param("name"), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toFileResponse(record))
}

func (s *Server) downloadFile(c echo.Context) error {
	record, body, err := s.files.Download(c.Request().Context(), c.Param("name"), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	defer body.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", record.Filename))
	return c.Stream(http.StatusOK, record.ContentType, body)
}

func (s *Server) replaceFile(c echo.Context) error {
	src, header, err := formFile(c)
	if err != nil {
		return writeErrorCode(c, http.StatusBadRequest, codeInvalidFile, "file parameter is required")
	}
	defer src.Close()

	record, err := s.files.Replace(c.Request().Context(),
		c.Param("name"), c.Param("id"), header.Filename, contentTypeOf(header), src)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toFileResponse(record))
}

func (s *Server) deleteFile(c echo.Context) error {
	if err := s.files.Delete(c.Request().Context(), c.Param("name"), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
