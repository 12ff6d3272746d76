package security

import (
	"bytes"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

// MaxImageBytes is the largest listing image accepted before resizing.
const MaxImageBytes = 10 << 20

// ImageValidationResult describes an accepted or rejected listing image.
type ImageValidationResult struct {
	Valid        bool
	Extension    string
	DetectedMIME string
	Error        string
}

var imageMagic = map[string][][]byte{
	".jpg":  {{0xFF, 0xD8, 0xFF}},
	".jpeg": {{0xFF, 0xD8, 0xFF}},
	".png":  {{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	".webp": {{0x52, 0x49, 0x46, 0x46}}, // RIFF
}

var imageMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// ValidateImage checks, in order, the extension whitelist, the magic bytes
// and the sniffed MIME type. All three must agree.
func ValidateImage(filename string, data []byte) ImageValidationResult {
	ext := strings.ToLower(filepath.Ext(filename))
	result := ImageValidationResult{Extension: ext}

	if len(data) == 0 {
		result.Error = "file is empty"
		return result
	}
	if len(data) > MaxImageBytes {
		result.Error = fmt.Sprintf("file exceeds %d MB", MaxImageBytes>>20)
		return result
	}

	signatures, ok := imageMagic[ext]
	if !ok {
		result.Error = "file extension not allowed: " + ext
		return result
	}
	if !hasPrefix(data, signatures) {
		result.Error = "file content does not match extension"
		return result
	}

	result.DetectedMIME = http.DetectContentType(data)
	if result.DetectedMIME != imageMIME[ext] {
		result.Error = "MIME type not allowed: " + result.DetectedMIME
		return result
	}

	result.Valid = true
	return result
}

func hasPrefix(data []byte, signatures [][]byte) bool {
	for _, sig := range signatures {
		if bytes.HasPrefix(data, sig) {
			return true
		}
	}
	return false
}

// AllowedImageExtensions lists the accepted extensions for error messages.
func AllowedImageExtensions() []string {
	return []string{".jpg", ".jpeg", ".png", ".webp"}
}
