package services

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	apperrors "video_uniquifier_bot/internal/errors"
	"video_uniquifier_bot/internal/utils/retry"

	"github.com/google/uuid"
	"github.com/kolesa-team/go-webp/decoder"
	"github.com/kolesa-team/go-webp/webp"
	"github.com/rs/zerolog/log"
)

// FileDownloader fetches a transport-held file to a local path.
type FileDownloader interface {
	DownloadFile(ctx context.Context, file FileRef, dst string) error
}

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// MediaLibrary owns the per-chat media layout under one root directory:
//
//	<root>/<chat>_video<ext>   current video
//	<root>/<chat>_imgs/        uploaded images
//	<root>/<chat>_gen_imgs/    generated images
//	<root>/<chat>_results/     rendered variants
//	<root>/<chat>_preview.png  last preview frame
type MediaLibrary struct {
	root           string
	maxUploadBytes int64
	httpClient     *http.Client
	downloadRetry  retry.Policy
}

func NewMediaLibrary(root string, maxUploadBytes int64, httpClient *http.Client) (*MediaLibrary, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &MediaLibrary{
		root:           root,
		maxUploadBytes: maxUploadBytes,
		httpClient:     httpClient,
		downloadRetry:  retry.Policy{MaxAttempts: 3, InitialBackoff: time.Second},
	}, nil
}

func (m *MediaLibrary) chatPath(chatID int64, suffix string) string {
	return filepath.Join(m.root, fmt.Sprintf("%d%s", chatID, suffix))
}

func (m *MediaLibrary) ImagesDir(chatID int64) string    { return m.chatPath(chatID, "_imgs") }
func (m *MediaLibrary) GeneratedDir(chatID int64) string { return m.chatPath(chatID, "_gen_imgs") }
func (m *MediaLibrary) ResultsDir(chatID int64) string   { return m.chatPath(chatID, "_results") }
func (m *MediaLibrary) PreviewPath(chatID int64) string  { return m.chatPath(chatID, "_preview.png") }

func (m *MediaLibrary) videoPath(chatID int64, ext string) string {
	if ext == "" {
		ext = ".mp4"
	}
	return m.chatPath(chatID, "_video"+strings.ToLower(ext))
}

// ResultPath names the i-th rendered variant of a video.
func (m *MediaLibrary) ResultPath(chatID int64, index int, videoPath string) (string, error) {
	dir := m.ResultsDir(chatID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, fmt.Sprintf("uniq_%d_%s", index, filepath.Base(videoPath))), nil
}

func (m *MediaLibrary) tooLarge() error {
	return apperrors.NewValidationError(fmt.Sprintf("file exceeds %d MB", m.maxUploadBytes>>20))
}

// SaveVideoUpload downloads a chat-uploaded video after checking its size.
func (m *MediaLibrary) SaveVideoUpload(ctx context.Context, dl FileDownloader, chatID int64, file FileRef) (string, error) {
	if file.Size > m.maxUploadBytes {
		return "", m.tooLarge()
	}
	dst := m.videoPath(chatID, filepath.Ext(file.Name))
	if err := dl.DownloadFile(ctx, file, dst); err != nil {
		return "", apperrors.NewUpstreamError("video download failed", err)
	}
	if info, err := os.Stat(dst); err == nil && info.Size() > m.maxUploadBytes {
		os.Remove(dst)
		return "", m.tooLarge()
	}
	return dst, nil
}

// SaveVideoFromURL fetches a video from an http(s) URL under the same size cap.
func (m *MediaLibrary) SaveVideoFromURL(ctx context.Context, chatID int64, rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", apperrors.NewValidationError("not a valid http(s) URL")
	}
	dst := m.videoPath(chatID, path.Ext(u.Path))

	_, err = retry.Do(ctx, m.downloadRetry, classifyHTTPError, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, m.download(ctx, u.String(), dst)
	})
	if err != nil {
		var tooLarge *fileTooLargeError
		if errors.As(err, &tooLarge) {
			return "", m.tooLarge()
		}
		return "", apperrors.NewValidationError("could not download video: " + err.Error())
	}
	return dst, nil
}

func (m *MediaLibrary) download(ctx context.Context, src, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return err
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		return &httpStatusError{status: resp.StatusCode}
	}
	if resp.ContentLength > m.maxUploadBytes {
		return &fileTooLargeError{limit: m.maxUploadBytes}
	}
	return writeLimited(resp.Body, dst, m.maxUploadBytes)
}

// writeLimited streams r into dst through a temp file and fails without
// touching dst when more than limit bytes arrive.
func writeLimited(r io.Reader, dst string, limit int64) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(r, limit+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if n > limit {
		return &fileTooLargeError{limit: limit}
	}
	return os.Rename(tmp.Name(), dst)
}

// SaveImageUpload stores an uploaded image or expands an uploaded zip into the
// chat's image directory and returns every accepted image now in it.
func (m *MediaLibrary) SaveImageUpload(ctx context.Context, dl FileDownloader, chatID int64, file FileRef) ([]string, error) {
	if file.Size > m.maxUploadBytes {
		return nil, m.tooLarge()
	}
	dir := m.ImagesDir(chatID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	name := filepath.Base(file.Name)
	ext := strings.ToLower(filepath.Ext(name))
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = uuid.New().String() + ext
	}
	switch {
	case ext == ".zip", imageExts[ext], ext == ".webp":
	default:
		return nil, apperrors.NewValidationError("unsupported file type " + ext)
	}

	tmp := filepath.Join(dir, ".upload-"+uuid.New().String()+ext)
	if err := dl.DownloadFile(ctx, file, tmp); err != nil {
		return nil, apperrors.NewUpstreamError("file download failed", err)
	}
	defer os.Remove(tmp)

	switch {
	case ext == ".zip":
		if err := m.expandZip(tmp, dir); err != nil {
			return nil, apperrors.NewValidationError("could not read zip archive: " + err.Error())
		}
	case ext == ".webp":
		f, err := os.Open(tmp)
		if err != nil {
			return nil, err
		}
		err = convertWebPToPNG(f, filepath.Join(dir, strings.TrimSuffix(name, filepath.Ext(name))+".png"))
		f.Close()
		if err != nil {
			return nil, apperrors.NewValidationError("could not decode webp image")
		}
	default:
		if err := os.Rename(tmp, filepath.Join(dir, name)); err != nil {
			return nil, err
		}
	}
	return ListImages(dir)
}

// expandZip extracts the image entries of an archive flat into dir. Entry
// paths are reduced to their base name so nothing escapes dir.
func (m *MediaLibrary) expandZip(archive, dir string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.Contains(f.Name, "__MACOSX") {
			continue
		}
		base := path.Base(strings.ReplaceAll(f.Name, "\\", "/"))
		if strings.HasPrefix(base, ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(base))
		if !imageExts[ext] && ext != ".webp" {
			continue
		}
		if err := m.extractEntry(f, dir, base, ext); err != nil {
			log.Warn().Err(err).Str("entry", f.Name).Msg("skipping zip entry")
		}
	}
	return nil
}

func (m *MediaLibrary) extractEntry(f *zip.File, dir, base, ext string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	if ext == ".webp" {
		return convertWebPToPNG(io.LimitReader(rc, m.maxUploadBytes), filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+".png"))
	}
	return writeLimited(rc, filepath.Join(dir, base), m.maxUploadBytes)
}

func convertWebPToPNG(r io.Reader, dst string) error {
	img, err := webp.Decode(r, &decoder.Options{})
	if err != nil {
		return fmt.Errorf("decode webp: %w", err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("encode png: %w", err)
	}
	return out.Close()
}

// SaveGeneratedImage writes the index-th generated image of a run.
func (m *MediaLibrary) SaveGeneratedImage(chatID int64, index int, data []byte) (string, error) {
	dir := m.GeneratedDir(chatID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	p := filepath.Join(dir, fmt.Sprintf("gen_%d.png", index))
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", err
	}
	return p, nil
}

// ListImages returns the accepted image files in dir, sorted by name.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	images := []string{}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			images = append(images, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(images)
	return images, nil
}
