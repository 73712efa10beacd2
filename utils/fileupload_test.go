package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCaseFile_AllowedFormats(t *testing.T) {
	for _, name := range []string{"scan.stl", "impression.ZIP", "prescription.pdf"} {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, ValidateCaseFile(name, int64(len("case content"))))
		})
	}
}

func TestValidateCaseFile_FileTooLarge(t *testing.T) {
	err := ValidateCaseFile("scan.stl", MaxFileSize+1)
	require.Error(t, err)

	fileErr, ok := err.(*FileUploadError)
	require.True(t, ok, "Error should be of type FileUploadError")
	assert.Equal(t, "FILE_TOO_LARGE", fileErr.Code)
	assert.Contains(t, fileErr.Message, "File size exceeds maximum allowed size")
}

func TestValidateCaseFile_InvalidFormat(t *testing.T) {
	tests := []string{"photo.png", "archive.rar", "noextension", "stl"}

	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			err := ValidateCaseFile(name, 10)
			require.Error(t, err)

			fileErr, ok := err.(*FileUploadError)
			require.True(t, ok, "Error should be of type FileUploadError")
			assert.Equal(t, "INVALID_FILE_FORMAT", fileErr.Code)
			assert.Contains(t, fileErr.Message, "zip, pdf, stl")
		})
	}
}

func TestSourceFileName(t *testing.T) {
	name := SourceFileName("Acme Dental", "Rossi", "Mario", 42, "stl")
	assert.Equal(t, "Acme Dental_ROSSI_MARIO_42.stl", name)
}

func TestFinalFileName(t *testing.T) {
	name := FinalFileName("Acme Dental", "Rossi", "Mario", 42, Extension("final.ZIP"))
	assert.Equal(t, "Acme Dental_ROSSI_MARIO_42_FINALE.ZIP", name)
}

func TestFileNamesStayFlat(t *testing.T) {
	name := SourceFileName("A/B Dental", "../Rossi", "Mario", 1, "pdf")
	assert.NotContains(t, name, "/")
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "stl", Extension("dir/scan.stl"))
	assert.Equal(t, "", Extension("README"))
}
