package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrExtensionNotAllowed = errors.New("file type not allowed")

// FileHandler stores uploads under a folder until they are analysed.
type FileHandler struct {
	folder     string
	extensions map[string]struct{}
}

// NewFileHandler creates the upload folder if needed.
func NewFileHandler(folder string, allowedExtensions []string) (*FileHandler, error) {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload folder %s: %w", folder, err)
	}
	extensions := make(map[string]struct{}, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		extensions[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	return &FileHandler{
		folder:     folder,
		extensions: extensions,
	}, nil
}

func extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

func (h *FileHandler) Allowed(filename string) bool {
	ext := extension(filename)
	if ext == "" {
		return false
	}
	_, ok := h.extensions[ext]
	return ok
}

// Save writes the upload under a random name that keeps the original extension.
func (h *FileHandler) Save(header *multipart.FileHeader) (string, error) {
	if !h.Allowed(header.Filename) {
		return "", ErrExtensionNotAllowed
	}

	src, err := header.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	path := filepath.Join(h.folder, uuid.NewString()+"."+extension(header.Filename))
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", err
	}

	if _, err = io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", err
	}
	if err = dst.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// Delete removes a stored upload, a missing file is not an error.
func (h *FileHandler) Delete(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
