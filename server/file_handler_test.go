package server

import (
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	req := uploadRequest(t, "file", filename, content)
	require.NoError(t, req.ParseMultipartForm(1<<20))
	_, header, err := req.FormFile("file")
	require.NoError(t, err)
	return header
}

func TestFileHandler_Allowed(t *testing.T) {
	h, err := NewFileHandler(t.TempDir(), []string{"jpg", ".PNG", "mp4"})
	require.NoError(t, err)

	testCases := []struct {
		filename string
		expected bool
	}{
		{"face.jpg", true},
		{"face.JPG", true},
		{"face.png", true},
		{"clip.mp4", true},
		{"clip.mkv", false},
		{"archive.tar.gz", false},
		{"jpg", false},
		{"", false},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, h.Allowed(tc.filename), tc.filename)
	}
}

func TestFileHandler_SaveAndDelete(t *testing.T) {
	folder := filepath.Join(t.TempDir(), "nested", "uploads")
	h, err := NewFileHandler(folder, []string{"png"})
	require.NoError(t, err)

	first, err := h.Save(fileHeader(t, "../../escape.png", []byte("one")))
	require.NoError(t, err)
	second, err := h.Save(fileHeader(t, "escape.png", []byte("two")))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, folder, filepath.Dir(first))
	assert.Equal(t, ".png", filepath.Ext(first))

	content, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), content)

	require.NoError(t, h.Delete(first))
	_, err = os.Stat(first)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, h.Delete(first))
}

func TestFileHandler_SaveRejectsExtension(t *testing.T) {
	h, err := NewFileHandler(t.TempDir(), []string{"png"})
	require.NoError(t, err)

	_, err = h.Save(fileHeader(t, "script.sh", []byte("#!/bin/sh")))
	assert.ErrorIs(t, err, ErrExtensionNotAllowed)
}
