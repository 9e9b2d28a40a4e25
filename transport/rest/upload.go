package rest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// allowedMimePrefixes is the attachment allow-list, checked against the
// sniffed type, never the client-declared one.
var allowedMimePrefixes = []string{
	"image/",
	"application/pdf",
	"text/plain",
	"audio/",
	"video/",
}

type attachmentResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
	SHA256   string `json:"sha256"`
}

// uploadAttachment stores one multipart file under a generated identifier.
// The body is capped, the content type sniffed from magic bytes, and a
// sha256 digest returned for client-side integrity checks.
func (s *Server) uploadAttachment(c echo.Context) error {
	c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, s.opts.MaxUploadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing file field")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return fmt.Errorf("opening upload: %w", err)
	}
	defer src.Close()

	sniffBuf := make([]byte, 512)
	n, err := io.ReadFull(src, sniffBuf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return fmt.Errorf("reading upload: %w", err)
	}
	sniffBuf = sniffBuf[:n]

	detected := mimetype.Detect(sniffBuf)
	if !isAllowedMime(detected.String()) {
		return echo.NewHTTPError(http.StatusUnsupportedMediaType,
			fmt.Sprintf("type %s is not allowed", detected.String()))
	}

	id := uuid.New().String()
	dstPath := filepath.Join(s.opts.UploadDir, id+detected.Extension())
	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("creating attachment file: %w", err)
	}
	defer dst.Close()

	hasher := sha256.New()
	writer := io.MultiWriter(dst, hasher)
	if _, err := writer.Write(sniffBuf); err != nil {
		return fmt.Errorf("writing attachment: %w", err)
	}
	size, err := io.Copy(writer, src)
	if err != nil {
		return fmt.Errorf("writing attachment: %w", err)
	}

	return c.JSON(http.StatusCreated, attachmentResponse{
		ID:       id,
		Name:     fileHeader.Filename,
		MimeType: detected.String(),
		Size:     size + int64(n),
		SHA256:   hex.EncodeToString(hasher.Sum(nil)),
	})
}

func isAllowedMime(mime string) bool {
	for _, prefix := range allowedMimePrefixes {
		if len(mime) >= len(prefix) && mime[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
