package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/medhanag29/rural-classroom/pkg"
)

// UploadService stores blobs on local disk, one directory per bucket, and
// returns their public URL.
type UploadService interface {
	Upload(ctx context.Context, bucket string, file multipart.File, header *multipart.FileHeader) (*UploadResult, error)
}

// UploadResult is what clients keep: the URL goes into a material's file
// list or into an analysis request.
type UploadResult struct {
	Bucket   string `json:"bucket"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
}

type uploadService struct {
	uploadDir string
	publicURL string
	maxSize   int64
	buckets   []string
}

func NewUploadService(uploadDir, publicURL string, maxSize int64, buckets []string) UploadService {
	return &uploadService{
		uploadDir: uploadDir,
		publicURL: strings.TrimRight(publicURL, "/"),
		maxSize:   maxSize,
		buckets:   buckets,
	}
}

// bucketMimePrefixes restricts the well-known buckets. Buckets not listed
// accept any type.
var bucketMimePrefixes = map[string][]string{
	"images": {"image/"},
	"audio":  {"audio/", "video/webm"},
}

func (s *uploadService) Upload(ctx context.Context, bucket string, file multipart.File, header *multipart.FileHeader) (*UploadResult, error) {
	if !slices.Contains(s.buckets, bucket) {
		return nil, fmt.Errorf("%w: unknown bucket %q", pkg.ErrBadRequest, bucket)
	}
	if header.Size > s.maxSize {
		return nil, fmt.Errorf("%w: file too large (max %dMB)", pkg.ErrBadRequest, s.maxSize/(1024*1024))
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	mimeBase := strings.TrimSpace(strings.Split(contentType, ";")[0])
	if prefixes, ok := bucketMimePrefixes[bucket]; ok && !hasAnyPrefix(mimeBase, prefixes) {
		return nil, fmt.Errorf("%w: file type %s not allowed in %s", pkg.ErrBadRequest, mimeBase, bucket)
	}

	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random filename: %w", err)
	}
	diskFilename := hex.EncodeToString(randomBytes) + "_" + sanitizeFilename(header.Filename)

	dir := filepath.Join(s.uploadDir, bucket)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create bucket directory: %w", err)
	}

	destPath := filepath.Join(dir, diskFilename)
	destFile, err := os.Create(destPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer destFile.Close()

	// one byte over the limit is enough to detect a lying Content-Length
	written, err := io.Copy(destFile, io.LimitReader(file, s.maxSize+1))
	if err != nil {
		os.Remove(destPath)
		return nil, fmt.Errorf("failed to save file: %w", err)
	}
	if written > s.maxSize {
		os.Remove(destPath)
		return nil, fmt.Errorf("%w: file too large (max %dMB)", pkg.ErrBadRequest, s.maxSize/(1024*1024))
	}

	return &UploadResult{
		Bucket:   bucket,
		Filename: header.Filename,
		URL:      s.publicURL + "/api/uploads/" + bucket + "/" + diskFilename,
		Size:     written,
	}, nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// sanitizeFilename strips path components and characters that could escape
// the bucket directory.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '\x00':
			return -1
		case ' ':
			return '_'
		}
		return r
	}, name)

	if name == "" || name == "." || name == ".." {
		name = "unnamed"
	}
	return name
}
