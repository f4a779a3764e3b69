package reqkit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/ambiyansyah-risyal/reqkit/internal/log"
)

// uploadField is the form field a single file is sent under.
const uploadField = "file"

// defaultDownloadName is used when neither the caller, the response nor the
// URL provide a file name.
const defaultDownloadName = "download"

// UploadPayload is a multipart body ready to send.
type UploadPayload struct {
	body        []byte
	contentType string
	err         error
}

// FilePayload builds a multipart payload carrying r as the "file" field.
func FilePayload(filename string, r io.Reader) *UploadPayload {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile(uploadField, filename)
	if err == nil {
		_, err = io.Copy(part, r)
	}
	if err == nil {
		err = w.Close()
	}
	if err != nil {
		err = fmt.Errorf("build multipart payload: %w", err)
	}
	return &UploadPayload{body: buf.Bytes(), contentType: w.FormDataContentType(), err: err}
}

// MultipartPayload wraps a body the caller already encoded, e.g. with several
// fields. contentType must carry the boundary.
func MultipartPayload(body []byte, contentType string) *UploadPayload {
	return &UploadPayload{body: body, contentType: contentType}
}

// ContentType returns the multipart content type including the boundary.
func (p *UploadPayload) ContentType() string { return p.contentType }

// Upload POSTs a multipart payload. The JSON content type is replaced by the
// payload's multipart one; everything else follows Request.
func (c *Client) Upload(ctx context.Context, path string, payload *UploadPayload, out any, opts ...RequestOption) (*Envelope, error) {
	d := c.describe(http.MethodPost, path, nil, nil, opts)
	if payload == nil || payload.err != nil {
		cause := errors.New("empty upload payload")
		if payload != nil {
			cause = payload.err
		}
		start := c.now()
		return nil, c.fail(c.newError(ErrorKindRequestFailed, "network.requestSendFailed", cause, attemptInfo{
			method: d.Method, path: path, start: start,
		}), d, start)
	}
	d.Body = payload.body
	d.ContentType = payload.contentType
	return c.Request(ctx, d, out)
}

// Download GETs path and streams the raw response body to disk, bypassing the
// envelope, the timeout, de-duplication and the loading indicator. The file is
// named filename, else the Content-Disposition name, else the last URL path
// segment, and is written atomically under the download directory. It returns
// the written path.
func (c *Client) Download(ctx context.Context, path, filename string, opts ...RequestOption) (string, error) {
	d := c.describe(http.MethodGet, path, nil, nil, opts)
	start := c.now()
	requestID := c.requestIDGen()
	ctx = log.ContextWithRequestID(ctx, requestID)
	info := attemptInfo{
		requestID: requestID,
		method:    d.Method,
		path:      d.Path,
		url:       buildURL(c.baseURL, d.Path, d.Params),
		start:     start,
	}

	saved, err := c.download(ctx, d, filename, info)
	if err != nil {
		c.metrics.RecordRequest(d.Method, d.Path, string(KindOf(err)), c.now().Sub(start))
		c.notifier.Error(c.translator.T("network.operationFailed"), notifyDuration)
		return "", err
	}

	c.metrics.RecordRequest(d.Method, d.Path, outcomeSuccess, c.now().Sub(start))
	c.notifier.Success(c.translator.T("network.operationSuccess"), notifyDuration)
	logger := log.WithContext(ctx, c.logger)
	logger.Info().Str(log.FieldURL, info.url).Str("file", saved).Msg("download saved")
	return saved, nil
}

func (c *Client) download(ctx context.Context, d *Descriptor, filename string, info attemptInfo) (string, error) {
	req, err := http.NewRequestWithContext(ctx, d.Method, info.url, nil)
	if err != nil {
		return "", c.record(c.newError(ErrorKindRequestFailed, "network.requestSendFailed", err, info))
	}
	req.Header.Set("User-Agent", userAgent())
	req.Header.Set(headerRequestID, info.requestID)
	for k, v := range d.Headers {
		req.Header.Set(k, v)
	}
	if d.NeedToken {
		if token := c.authToken(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", c.classifyFault(ctx, err, info)
		}
	}

	c.metrics.RecordAttemptStart(d.Method)
	resp, err := c.executeMiddleware(req)
	c.metrics.RecordAttemptEnd(d.Method)
	if err != nil {
		return "", c.classifyFault(ctx, err, info)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", c.statusError(ctx, resp.StatusCode, info)
	}

	name := downloadName(filename, resp.Header.Get("Content-Disposition"), resp.Request)
	target := filepath.Join(c.downloadDir, name)

	pending, err := renameio.NewPendingFile(target)
	if err != nil {
		return "", c.record(c.newError(ErrorKindRequestFailed, "network.operationFailed",
			fmt.Errorf("create %s: %w", target, err), info))
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := io.Copy(pending, resp.Body); err != nil {
		return "", c.classifyFault(ctx, err, info)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return "", c.record(c.newError(ErrorKindRequestFailed, "network.operationFailed",
			fmt.Errorf("save %s: %w", target, err), info))
	}
	return target, nil
}

// downloadName picks the saved file name and strips any directory part so a
// server cannot write outside the download directory.
func downloadName(filename, disposition string, req *http.Request) string {
	candidates := []string{filename}
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			candidates = append(candidates, params["filename"])
		}
	}
	if req != nil && req.URL != nil {
		candidates = append(candidates, urlBase(req.URL))
	}

	for _, candidate := range candidates {
		name := filepath.Base(filepath.Clean("/" + candidate))
		if name != "" && name != "." && name != "/" && name != string(filepath.Separator) {
			return name
		}
	}
	return defaultDownloadName
}

func urlBase(u *url.URL) string {
	base := path.Base(u.Path)
	if base == "/" || base == "." {
		return ""
	}
	return base
}
