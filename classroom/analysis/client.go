// Package analysis calls the speech, vision and summarizer services.
//
// The services are opaque: this package only shapes requests and reads
// answers. Any transport error, timeout, non-2xx status, malformed body or
// the literal "error" reply is reported as pkg.ErrExternalCallFailed.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/medhanag29/rural-classroom/pkg"
)

// maxResponseSize caps what is read from a service answer.
const maxResponseSize = 1 << 20

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the service at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// SpeechToText transcribes audio in the given language, e.g. "hi-IN".
// The reply "unable to transcribe" is a valid answer and is returned as is.
func (c *Client) SpeechToText(ctx context.Context, audio []byte, mimeType, language string) (string, error) {
	body, contentType, err := multipartBody(
		filePart{field: "file", name: "audio" + extensionFor(mimeType), mimeType: mimeType, data: audio},
		map[string]string{"language": language},
	)
	if err != nil {
		return "", err
	}

	raw, err := c.post(ctx, "/speech-to-text", contentType, body)
	if err != nil {
		return "", err
	}
	return textAnswer(raw, "text")
}

// ImageToDoubts returns the service's doubt estimate for a classroom image.
// The answer is text; callers parse the count.
func (c *Client) ImageToDoubts(ctx context.Context, image []byte, mimeType string) (string, error) {
	body, contentType, err := multipartBody(
		filePart{field: "file", name: "doubts" + extensionFor(mimeType), mimeType: mimeType, data: image},
		nil,
	)
	if err != nil {
		return "", err
	}

	raw, err := c.post(ctx, "/doubts-analysis", contentType, body)
	if err != nil {
		return "", err
	}
	return textAnswer(raw, "doubts")
}

// ImageToRollNumbers reads roll numbers off an attendance image. absent
// restricts detection to students not yet marked.
func (c *Client) ImageToRollNumbers(ctx context.Context, image []byte, mimeType string, absent []int, classStrength int) ([]int, error) {
	rolls, err := json.Marshal(absentOrEmpty(absent))
	if err != nil {
		return nil, fmt.Errorf("%w: encode roll numbers: %v", pkg.ErrExternalCallFailed, err)
	}
	body, contentType, err := multipartBody(
		filePart{field: "file", name: "attendance_image" + extensionFor(mimeType), mimeType: mimeType, data: image},
		map[string]string{
			"rollNumbers": string(rolls),
			"class_limit": strconv.Itoa(classStrength),
		},
	)
	if err != nil {
		return nil, err
	}

	raw, err := c.post(ctx, "/mcq-analysis", contentType, body)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Extracted *[]int `json:"extracted_roll_numbers"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Extracted == nil {
		return nil, fmt.Errorf("%w: roll number answer has no extracted_roll_numbers", pkg.ErrExternalCallFailed)
	}
	return *resp.Extracted, nil
}

// Summarize condenses chat lines. The answer loses per-line timing.
func (c *Client) Summarize(ctx context.Context, texts []string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(map[string][]string{"messages": texts})
	if err != nil {
		return nil, fmt.Errorf("%w: encode messages: %v", pkg.ErrExternalCallFailed, err)
	}

	raw, err := c.post(ctx, "/filter-messages", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var resp struct {
		Messages *[]string `json:"messages"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Messages == nil {
		return nil, fmt.Errorf("%w: summary answer has no messages", pkg.ErrExternalCallFailed)
	}
	return *resp.Messages, nil
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", pkg.ErrExternalCallFailed, path, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", pkg.ErrExternalCallFailed, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read answer: %v", pkg.ErrExternalCallFailed, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s: %s", pkg.ErrExternalCallFailed, path, resp.Status)
	}
	return raw, nil
}

// textAnswer accepts {"<key>": "..."}, a bare JSON string or plain text.
func textAnswer(raw []byte, key string) (string, error) {
	raw = bytes.TrimSpace(raw)

	var text string
	switch {
	case len(raw) > 0 && raw[0] == '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return "", fmt.Errorf("%w: malformed answer", pkg.ErrExternalCallFailed)
		}
		v, ok := obj[key]
		if !ok {
			return "", fmt.Errorf("%w: answer has no %q", pkg.ErrExternalCallFailed, key)
		}
		if err := json.Unmarshal(v, &text); err != nil {
			// numbers are fine too, e.g. {"doubts": 3}
			text = string(v)
		}
	case len(raw) > 0 && raw[0] == '"':
		if err := json.Unmarshal(raw, &text); err != nil {
			return "", fmt.Errorf("%w: malformed answer", pkg.ErrExternalCallFailed)
		}
	default:
		text = string(raw)
	}

	text = strings.TrimSpace(text)
	if text == "" || strings.EqualFold(text, "error") {
		return "", fmt.Errorf("%w: service answered %q", pkg.ErrExternalCallFailed, text)
	}
	return text, nil
}

type filePart struct {
	field    string
	name     string
	mimeType string
	data     []byte
}

func multipartBody(file filePart, fields map[string]string) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.field, file.name))
	mimeType := file.mimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	h.Set("Content-Type", mimeType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("%w: build request: %v", pkg.ErrExternalCallFailed, err)
	}
	if _, err := part.Write(file.data); err != nil {
		return nil, "", fmt.Errorf("%w: build request: %v", pkg.ErrExternalCallFailed, err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("%w: build request: %v", pkg.ErrExternalCallFailed, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("%w: build request: %v", pkg.ErrExternalCallFailed, err)
	}
	return &buf, mw.FormDataContentType(), nil
}

func extensionFor(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	switch strings.TrimSpace(base) {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "audio/webm", "video/webm":
		return ".webm"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/mpeg":
		return ".mp3"
	case "audio/ogg":
		return ".ogg"
	default:
		return ""
	}
}

func absentOrEmpty(absent []int) []int {
	if absent == nil {
		return []int{}
	}
	return absent
}
