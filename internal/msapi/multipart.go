package msapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
)

// FilePart is a file field of a multipart request. The workload API expects
// file fields even when nothing is uploaded, so Content may be empty.
type FilePart struct {
	Field       string
	FileName    string
	ContentType string
	Content     []byte
}

// EmptyFile is a placeholder octet-stream part with no name and no content.
func EmptyFile(field string) FilePart {
	return FilePart{Field: field, ContentType: "application/octet-stream"}
}

// Multipart sends a multipart/form-data request. A non-nil data value is
// sent first as the JSON part "data".
func (c *Client) Multipart(ctx context.Context, method, path string, data any, files ...FilePart) (*Response, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s data part: %w", method, path, err)
		}
		if err := writePart(w, "data", "", "application/json", payload); err != nil {
			return nil, err
		}
	}
	for _, f := range files {
		if err := writePart(w, f.Field, f.FileName, f.ContentType, f.Content); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, method, path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.send(req, path, true)
}

func writePart(w *multipart.Writer, field, fileName, contentType string, content []byte) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, fileName))
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create multipart field %s: %w", field, err)
	}
	_, err = part.Write(content)
	return err
}
