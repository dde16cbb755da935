package upload

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// File is a dataset chosen by the operator. Validation only looks at Name and Size.
type File struct {
	Name string
	Size int64
	open func() (io.ReadCloser, error)
}

// Open returns the file content.
func (f *File) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, fmt.Errorf("file %s has no content", f.Name)
	}
	return f.open()
}

// FromPath describes a file on disk. The file is not read until Open.
func FromPath(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &File{
		Name: filepath.Base(path),
		Size: info.Size(),
		open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// FromBytes wraps in-memory content under the given name.
func FromBytes(name string, data []byte) *File {
	return &File{
		Name: name,
		Size: int64(len(data)),
		open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

// ValidationCode identifies why a file was rejected.
type ValidationCode string

const (
	NoFileSelected  ValidationCode = "no_file_selected"
	InvalidFileType ValidationCode = "invalid_file_type"
	FileTooLarge    ValidationCode = "file_too_large"
)

// ValidationError rejects a file before any network call.
type ValidationError struct {
	Code    ValidationCode
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Is matches any ValidationError with the same code.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Code == e.Code
}

var (
	ErrNoFileSelected  = &ValidationError{Code: NoFileSelected, Message: "Please select a file to upload."}
	ErrInvalidFileType = &ValidationError{Code: InvalidFileType, Message: "Please upload a CSV file only."}
)

// ValidateFile checks that a file was chosen, is named *.csv and fits maxBytes.
// maxBytes <= 0 disables the size check.
func ValidateFile(f *File, maxBytes int64) error {
	if f == nil || f.Name == "" {
		return ErrNoFileSelected
	}
	if !strings.HasSuffix(f.Name, ".csv") {
		return ErrInvalidFileType
	}
	if maxBytes > 0 && f.Size > maxBytes {
		return &ValidationError{
			Code:    FileTooLarge,
			Message: fmt.Sprintf("File is too large. Maximum size is %dMB.", maxBytes>>20),
		}
	}
	return nil
}
