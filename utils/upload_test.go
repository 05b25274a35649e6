package utils

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrimarket/config"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

var pdfHeader = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")

func TestCheckUpload(t *testing.T) {
	kind, err := CheckUpload("ewe.PNG", pngHeader, KindImage)
	require.NoError(t, err)
	assert.Equal(t, KindImage, kind)

	kind, err = CheckUpload("cert.pdf", pdfHeader, KindImage, KindDocument)
	require.NoError(t, err)
	assert.Equal(t, KindDocument, kind)

	_, err = CheckUpload("fake.png", pdfHeader, KindImage)
	assert.Error(t, err, "content must match extension")

	_, err = CheckUpload("script.exe", pngHeader, KindImage, KindDocument)
	assert.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, AsAppError(err).Status())
}

func multipartFile(t *testing.T, field, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File[field][0]
}

func TestSaveUpload(t *testing.T) {
	prev := config.AppConfig
	t.Cleanup(func() { config.AppConfig = prev })
	config.AppConfig.UploadDir = t.TempDir()
	config.AppConfig.UploadMaxBytes = 1 << 20

	fh := multipartFile(t, "image", "My Ewe.png", pngHeader)
	public, err := SaveUpload(fh, KindImage)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(public, "/uploads/image/my-ewe-"), public)
	assert.True(t, strings.HasSuffix(public, ".png"))

	onDisk := filepath.Join(config.AppConfig.UploadDir, "image", filepath.Base(public))
	data, err := os.ReadFile(onDisk)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)

	RemoveUpload(public)
	_, err = os.Stat(onDisk)
	assert.True(t, os.IsNotExist(err))
}

func TestSaveUploadRejectsOversize(t *testing.T) {
	prev := config.AppConfig
	t.Cleanup(func() { config.AppConfig = prev })
	config.AppConfig.UploadDir = t.TempDir()
	config.AppConfig.UploadMaxBytes = 8

	_, err := SaveUpload(multipartFile(t, "image", "big.png", pngHeader), KindImage)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, AsAppError(err).Status())
}

func TestRemoveUploadStaysInUploadDir(t *testing.T) {
	prev := config.AppConfig
	t.Cleanup(func() { config.AppConfig = prev })
	root := t.TempDir()
	config.AppConfig.UploadDir = filepath.Join(root, "uploads")
	require.NoError(t, os.MkdirAll(config.AppConfig.UploadDir, 0o755))

	outside := filepath.Join(root, "keep.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))

	for _, p := range []string{"/uploads/../keep.txt", "/uploads/image/../../keep.txt", "/uploads//" + outside} {
		assert.False(t, IsUploadPath(p), p)
		RemoveUpload(p)
	}
	_, err := os.Stat(outside)
	assert.NoError(t, err)

	assert.True(t, IsUploadPath("/uploads/image/ewe.png"))
	assert.False(t, IsUploadPath("/etc/passwd"))
}
