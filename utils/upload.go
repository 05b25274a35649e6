package utils

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"agrimarket/config"
)

// FileKind groups the accepted upload types
type FileKind string

const (
	KindImage    FileKind = "image"
	KindVideo    FileKind = "video"
	KindDocument FileKind = "document"
)

// UploadURLPrefix is where UPLOAD_DIR is served
const UploadURLPrefix = "/uploads"

type fileRule struct {
	exts  map[string]bool
	mimes map[string]bool
}

var uploadRules = map[FileKind]fileRule{
	KindImage: {
		exts:  map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true},
		mimes: map[string]bool{"image/jpeg": true, "image/png": true, "image/gif": true, "image/webp": true},
	},
	KindVideo: {
		exts:  map[string]bool{".mp4": true, ".webm": true, ".mov": true},
		mimes: map[string]bool{"video/mp4": true, "video/webm": true, "video/quicktime": true},
	},
	KindDocument: {
		exts:  map[string]bool{".pdf": true},
		mimes: map[string]bool{"application/pdf": true},
	},
}

// CheckUpload validates the extension of name and the sniffed type of head
// against the rules for kinds. It returns the kind that matched.
func CheckUpload(name string, head []byte, kinds ...FileKind) (FileKind, error) {
	ext := strings.ToLower(filepath.Ext(name))
	detected := mimetype.Detect(head)

	for _, k := range kinds {
		rule, ok := uploadRules[k]
		if !ok || !rule.exts[ext] {
			continue
		}
		for m := detected; m != nil; m = m.Parent() {
			if rule.mimes[m.String()] || rule.mimes[strings.SplitN(m.String(), ";", 2)[0]] {
				return k, nil
			}
		}
		return "", Validation(fmt.Sprintf("file %q content (%s) does not match its extension", name, detected.String()), "file")
	}
	return "", Validation(fmt.Sprintf("file type %q is not allowed", ext), "file")
}

// SaveUpload validates fh and writes it under UPLOAD_DIR/<kind>/. The
// returned path is the public one, e.g. /uploads/image/ewe-<uuid>.jpg.
func SaveUpload(fh *multipart.FileHeader, kinds ...FileKind) (string, error) {
	maxBytes := config.AppConfig.UploadMaxBytes
	if maxBytes > 0 && fh.Size > maxBytes {
		return "", Validation(fmt.Sprintf("file %q exceeds the %d byte limit", fh.Filename, maxBytes), "file")
	}

	src, err := fh.Open()
	if err != nil {
		return "", Validation("could not read uploaded file", "file")
	}
	defer src.Close()

	head := make([]byte, 3072)
	n, err := io.ReadFull(src, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", Validation("could not read uploaded file", "file")
	}
	head = head[:n]

	kind, err := CheckUpload(fh.Filename, head, kinds...)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(config.AppConfig.UploadDir, string(kind))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", Internal("could not prepare upload directory", err)
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	base := slug.Make(strings.TrimSuffix(filepath.Base(fh.Filename), filepath.Ext(fh.Filename)))
	if base == "" {
		base = string(kind)
	}
	name := fmt.Sprintf("%s-%s%s", base, uuid.NewString(), ext)

	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", Internal("could not store uploaded file", err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, io.MultiReader(bytes.NewReader(head), src))
	if err != nil {
		return "", Internal("could not store uploaded file", err)
	}
	if maxBytes > 0 && written > maxBytes {
		_ = os.Remove(dst.Name())
		return "", Validation(fmt.Sprintf("file %q exceeds the %d byte limit", fh.Filename, maxBytes), "file")
	}

	return path.Join(UploadURLPrefix, string(kind), name), nil
}

// uploadFile maps a public /uploads/... path to its file under UPLOAD_DIR.
// Paths that would leave UPLOAD_DIR are refused.
func uploadFile(public string) (string, bool) {
	if !strings.HasPrefix(public, UploadURLPrefix+"/") {
		return "", false
	}
	rel := filepath.FromSlash(strings.TrimPrefix(public, UploadURLPrefix+"/"))
	if !filepath.IsLocal(rel) {
		return "", false
	}
	return filepath.Join(config.AppConfig.UploadDir, rel), true
}

// IsUploadPath reports whether public points inside the upload directory
func IsUploadPath(public string) bool {
	_, ok := uploadFile(public)
	return ok
}

// RemoveUpload deletes a file previously returned by SaveUpload. Unknown paths are ignored.
func RemoveUpload(public string) {
	file, ok := uploadFile(public)
	if !ok {
		return
	}
	_ = os.Remove(file)
}
