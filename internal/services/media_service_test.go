package services

import (
	"archive/zip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	apperrors "video_uniquifier_bot/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// downloaderServing returns a messenger whose DownloadFile writes content to
// the requested destination.
func downloaderServing(content []byte) *MockMessenger {
	m := new(MockMessenger)
	m.On("DownloadFile", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			_ = os.WriteFile(args.String(2), content, 0o644)
		}).
		Return(nil)
	return m
}

func buildZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	p := filepath.Join(t.TempDir(), "upload.zip")
	f, err := os.Create(p)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	return data
}

func TestMediaLibrary_SaveImageUpload(t *testing.T) {
	ctx := context.Background()
	const chatID = int64(3)

	t.Run("Single image", func(t *testing.T) {
		media := newTestMedia(t)
		dl := downloaderServing([]byte("png"))

		images, err := media.SaveImageUpload(ctx, dl, chatID, FileRef{ID: "f1", Name: "photo.PNG", Size: 3})
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(media.ImagesDir(chatID), "photo.PNG")}, images)
	})

	t.Run("Zip keeps only images", func(t *testing.T) {
		media := newTestMedia(t)
		archive := buildZip(t, map[string]string{
			"a.png":            "a",
			"b.JPG":            "b",
			"sub/c.jpeg":       "c",
			"notes.txt":        "n",
			"__MACOSX/._a.png": "junk",
			".hidden.png":      "h",
			"deep/dir/":        "",
			"movie.mp4":        "m",
		})
		dl := downloaderServing(archive)

		images, err := media.SaveImageUpload(ctx, dl, chatID, FileRef{ID: "z", Name: "pack.zip", Size: int64(len(archive))})
		require.NoError(t, err)

		dir := media.ImagesDir(chatID)
		assert.Equal(t, []string{
			filepath.Join(dir, "a.png"),
			filepath.Join(dir, "b.JPG"),
			filepath.Join(dir, "c.jpeg"),
		}, images)
	})

	t.Run("Uploads accumulate", func(t *testing.T) {
		media := newTestMedia(t)
		_, err := media.SaveImageUpload(ctx, downloaderServing([]byte("1")), chatID, FileRef{Name: "one.jpg"})
		require.NoError(t, err)
		images, err := media.SaveImageUpload(ctx, downloaderServing([]byte("2")), chatID, FileRef{Name: "two.jpg"})
		require.NoError(t, err)
		assert.Len(t, images, 2)
	})

	t.Run("Unsupported type", func(t *testing.T) {
		media := newTestMedia(t)
		dl := new(MockMessenger)
		_, err := media.SaveImageUpload(ctx, dl, chatID, FileRef{Name: "doc.pdf", Size: 10})
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
		dl.AssertNotCalled(t, "DownloadFile", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Oversize upload is refused before download", func(t *testing.T) {
		media := newTestMedia(t)
		dl := new(MockMessenger)
		_, err := media.SaveImageUpload(ctx, dl, chatID, FileRef{Name: "big.png", Size: 21 << 20})
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
		dl.AssertNotCalled(t, "DownloadFile", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestMediaLibrary_SaveVideoUpload(t *testing.T) {
	ctx := context.Background()
	media := newTestMedia(t)

	p, err := media.SaveVideoUpload(ctx, downloaderServing([]byte("mp4")), 9, FileRef{ID: "v", Name: "Clip.MOV", Size: 3})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(media.root, "9_video.mov"), p)
	assert.FileExists(t, p)

	_, err = media.SaveVideoUpload(ctx, new(MockMessenger), 9, FileRef{Name: "huge.mp4", Size: 50 << 20})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestMediaLibrary_SaveVideoFromURL(t *testing.T) {
	ctx := context.Background()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/clip.mp4":
			w.Write([]byte("video-bytes"))
		case "/big.mp4":
			w.Write(make([]byte, 64))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	t.Run("Downloads into the chat video slot", func(t *testing.T) {
		media := newTestMedia(t)
		p, err := media.SaveVideoFromURL(ctx, 4, server.URL+"/clip.mp4")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(media.root, "4_video.mp4"), p)
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, "video-bytes", string(data))
	})

	t.Run("Too large", func(t *testing.T) {
		media, err := NewMediaLibrary(t.TempDir(), 16, server.Client())
		require.NoError(t, err)
		_, err = media.SaveVideoFromURL(ctx, 4, server.URL+"/big.mp4")
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
		assert.NoFileExists(t, filepath.Join(media.root, "4_video.mp4"))
	})

	t.Run("Not found is not retried", func(t *testing.T) {
		media := newTestMedia(t)
		_, err := media.SaveVideoFromURL(ctx, 4, server.URL+"/missing.mp4")
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})

	t.Run("Rejects non-http URLs", func(t *testing.T) {
		media := newTestMedia(t)
		for _, raw := range []string{"ftp://example.com/a.mp4", "http://", "not a url"} {
			_, err := media.SaveVideoFromURL(ctx, 4, raw)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation), raw)
		}
	})
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.JPG", "c.txt", ".d.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "e.png"), 0o755))

	images, err := ListImages(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.JPG"), filepath.Join(dir, "b.png")}, images)
}
