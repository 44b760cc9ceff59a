package validation

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime/multipart"
	"regexp"
	"strings"
)

const (
	MaxImageSize = 10 << 20 // 10MB
)

var (
	ErrFileTooLarge    = errors.New("file too large")
	ErrInvalidFileType = errors.New("invalid file type - only png, jpeg, gif, webp, svg allowed")
	ErrFilenameTooLong = errors.New("filename too long - maximum 255 characters")
	ErrEmptyFile       = errors.New("file is empty")
	ErrInvalidDataURL  = errors.New("invalid image data URL")
	ErrInvalidField    = errors.New("invalid field key")
	ErrInvalidType     = errors.New("invalid section type")
)

var AllowedMimeTypes = map[string]bool{
	"image/png":     true,
	"image/jpeg":    true,
	"image/gif":     true,
	"image/webp":    true,
	"image/svg+xml": true,
}

var (
	fieldKeyPattern    = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,63}$`)
	sectionTypePattern = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)
)

// ValidateUpload checks a multipart image upload against size and type limits.
// maxBytes <= 0 selects MaxImageSize.
func ValidateUpload(fileHeader *multipart.FileHeader, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = MaxImageSize
	}

	if fileHeader.Size == 0 {
		return ErrEmptyFile
	}

	if fileHeader.Size > maxBytes {
		return fmt.Errorf("%w - maximum %d bytes allowed", ErrFileTooLarge, maxBytes)
	}

	if len(fileHeader.Filename) > 255 {
		return ErrFilenameTooLong
	}

	if !AllowedMimeTypes[ContentType(fileHeader)] {
		return ErrInvalidFileType
	}

	return nil
}

// ContentType returns the declared content type of an upload, guessing from
// the file extension when the header carries none.
func ContentType(fileHeader *multipart.FileHeader) string {
	contentType := fileHeader.Header.Get("Content-Type")
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	contentType = strings.TrimSpace(strings.ToLower(contentType))

	if contentType == "" || contentType == "application/octet-stream" {
		contentType = guessContentType(fileHeader.Filename)
	}
	return contentType
}

func guessContentType(filename string) string {

	idx := strings.LastIndex(filename, ".")
	if idx == -1 {
		return "application/octet-stream"
	}

	ext := strings.ToLower(filename[idx+1:])

	typeMap := map[string]string{
		"png":  "image/png",
		"jpg":  "image/jpeg",
		"jpeg": "image/jpeg",
		"gif":  "image/gif",
		"webp": "image/webp",
		"svg":  "image/svg+xml",
	}

	if ct, ok := typeMap[ext]; ok {
		return ct
	}

	return "application/octet-stream"
}

// ValidateDataURL checks that s is a base64 image data URL whose decoded
// payload fits in maxBytes, and returns its mime type.
func ValidateDataURL(s string, maxBytes int64) (string, error) {
	if maxBytes <= 0 {
		maxBytes = MaxImageSize
	}

	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", ErrInvalidDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", ErrInvalidDataURL
	}
	mimeType, encoding, _ := strings.Cut(meta, ";")
	mimeType = strings.ToLower(mimeType)
	if !AllowedMimeTypes[mimeType] {
		return "", ErrInvalidFileType
	}
	if encoding != "base64" {
		return "", fmt.Errorf("%w: only base64 payloads are accepted", ErrInvalidDataURL)
	}
	if payload == "" {
		return "", ErrEmptyFile
	}
	if int64(base64.StdEncoding.DecodedLen(len(payload))) > maxBytes+2 {
		return "", fmt.Errorf("%w - maximum %d bytes allowed", ErrFileTooLarge, maxBytes)
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return mimeType, nil
}

// EncodeDataURL builds a base64 data URL from raw bytes.
func EncodeDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func ValidateFieldKey(key string) error {
	if !fieldKeyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidField, key)
	}
	return nil
}

func ValidateSectionType(sectionType string) error {
	if len(sectionType) > 64 || !sectionTypePattern.MatchString(sectionType) {
		return fmt.Errorf("%w: %q", ErrInvalidType, sectionType)
	}
	return nil
}
