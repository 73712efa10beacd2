package utils

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// MaxFileSize is 50MB in bytes
	MaxFileSize = 50 * 1024 * 1024
)

// AllowedExtensions lists the case file formats accepted for upload.
var AllowedExtensions = []string{"zip", "pdf", "stl"}

// FileUploadError represents a file upload validation error
type FileUploadError struct {
	Code    string
	Message string
}

func (e *FileUploadError) Error() string {
	return e.Message
}

// ValidateCaseFile checks the name and size of an uploaded case file.
func ValidateCaseFile(filename string, size int64) error {
	if size > MaxFileSize {
		return &FileUploadError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("File size exceeds maximum allowed size of %d MB", MaxFileSize/(1024*1024)),
		}
	}

	ext := strings.ToLower(Extension(filename))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}

	return &FileUploadError{
		Code:    "INVALID_FILE_FORMAT",
		Message: fmt.Sprintf("The file must be one of the following formats: %s", strings.Join(AllowedExtensions, ", ")),
	}
}

// Extension returns the extension of filename without the dot, as uploaded.
func Extension(filename string) string {
	return strings.TrimPrefix(filepath.Ext(filepath.Base(filename)), ".")
}

// SourceFileName builds the stored name of a client case file:
// {business}_{SURNAME}_{NAME}_{orderID}.{ext}
func SourceFileName(business, patientLastName, patientFirstName string, orderID uint, ext string) string {
	return fmt.Sprintf("%s_%d.%s", baseName(business, patientLastName, patientFirstName), orderID, ext)
}

// FinalFileName builds the stored name of the deliverable uploaded by an operator:
// {business}_{SURNAME}_{NAME}_{orderID}_FINALE.{ext}
func FinalFileName(business, patientLastName, patientFirstName string, orderID uint, ext string) string {
	return fmt.Sprintf("%s_%d_FINALE.%s", baseName(business, patientLastName, patientFirstName), orderID, ext)
}

func baseName(business, lastName, firstName string) string {
	return strings.Join([]string{
		pathSafe(business),
		pathSafe(strings.ToUpper(lastName)),
		pathSafe(strings.ToUpper(firstName)),
	}, "_")
}

// pathSafe keeps generated names inside the storage directory.
func pathSafe(s string) string {
	return strings.NewReplacer("/", "-", "\\", "-").Replace(s)
}
