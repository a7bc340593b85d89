package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/noah-isme/gema-chat-sync/internal/models"
)

// MaxUploadBytes bounds what UploadFile will buffer.
const MaxUploadBytes = 25 * 1024 * 1024

var (
	// ErrUploadTooLarge indicates the file exceeded MaxUploadBytes.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadEmpty indicates the reader produced no bytes.
	ErrUploadEmpty = errors.New("file is empty")
)

// UploadFile sends a file as multipart form data. The content type is sniffed from the bytes
// rather than trusted from the name.
func (c *Client) UploadFile(ctx context.Context, name string, content io.Reader) (models.Attachment, error) {
	data, err := io.ReadAll(io.LimitReader(content, MaxUploadBytes+1))
	if err != nil {
		return models.Attachment{}, fmt.Errorf("upload: read file: %w", err)
	}
	if len(data) == 0 {
		return models.Attachment{}, ErrUploadEmpty
	}
	if len(data) > MaxUploadBytes {
		return models.Attachment{}, ErrUploadTooLarge
	}

	detected := mimetype.Detect(data)
	fileName := filepath.Base(strings.TrimSpace(name))
	if fileName == "." || fileName == "/" || fileName == "" {
		fileName = "upload" + detected.Extension()
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(fileName)))
	header.Set("Content-Type", detected.String())
	part, err := writer.CreatePart(header)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("upload: create part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return models.Attachment{}, fmt.Errorf("upload: write part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return models.Attachment{}, fmt.Errorf("upload: close form: %w", err)
	}

	var attachment models.Attachment
	err = c.do(ctx, call{
		operation:   "upload.file",
		method:      http.MethodPost,
		path:        "/chat/upload",
		body:        &body,
		contentType: writer.FormDataContentType(),
	}, &attachment)
	if err != nil {
		return models.Attachment{}, err
	}

	if attachment.Name == "" {
		attachment.Name = fileName
	}
	if attachment.MimeType == "" {
		attachment.MimeType = detected.String()
	}
	if attachment.Size == 0 {
		attachment.Size = int64(len(data))
	}
	return attachment, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
