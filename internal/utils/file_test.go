package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateInputFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "resume.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0600))

	assert.NoError(t, ValidateInputFile(file))
	assert.EqualError(t, ValidateInputFile(""), "filename cannot be empty")
	assert.ErrorContains(t, ValidateInputFile(filepath.Join(dir, "nope.txt")), "file does not exist")
	assert.ErrorContains(t, ValidateInputFile(dir), "path is a directory")
}

func TestValidateOutputFileCreatesDirectory(t *testing.T) {
	out := filepath.Join(t.TempDir(), "reports", "match.json")
	require.NoError(t, ValidateOutputFile(out))

	info, err := os.Stat(filepath.Dir(out))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFileExtensions(t *testing.T) {
	assert.Equal(t, ".pdf", GetFileExtension("CV.PDF"))
	assert.True(t, IsTextFile("notes.Markdown"))
	assert.False(t, IsTextFile("resume.docx"))
}

func TestFormatFileSize(t *testing.T) {
	tests := map[int64]string{
		512:              "512 B",
		1024:             "1.0 KB",
		10 * 1024 * 1024: "10.0 MB",
	}
	for size, want := range tests {
		assert.Equal(t, want, FormatFileSize(size))
	}
}

func TestCheckSize(t *testing.T) {
	assert.NoError(t, CheckSize("resume_file", 10, 0))
	assert.NoError(t, CheckSize("resume_file", 1024, 1024))
	assert.EqualError(t, CheckSize("resume_file", 2048, 1024), "resume_file is 2.0 KB, larger than the 1.0 KB limit")
}
