package chomikuj

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/publicsuffix"
)

// Doer sends one HTTP request and returns the response whatever its
// status code.
//
// *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient makes the HTTP client the site needs: it keeps session
// cookies, never follows redirects and treats every status as a response.
//
// A zero timeout means no timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	// cookiejar.New only fails on a nil PublicSuffixList
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &http.Client{
		Jar:     jar,
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

const (
	headerRequestedWith = "X-Requested-With"
	ajaxRequestedWith   = "XMLHttpRequest"
)

// newRequest builds a request, marking it as an ajax call unless ajax is
// false. Profile pages are served differently to ajax calls.
func newRequest(ctx context.Context, method, rawURL string, body io.Reader, ajax bool) (*http.Request, error) {
	req, err := http.NewRequest(method, rawURL, body)
	if err != nil {
		return nil, &Error{Kind: KindRequestFailed, Err: errors.Wrapf(err, "%s %s", method, rawURL)}
	}
	req = req.WithContext(ctx)
	if ajax {
		req.Header.Set(headerRequestedWith, ajaxRequestedWith)
	}
	return req, nil
}

func newFormRequest(ctx context.Context, rawURL string, form url.Values) (*http.Request, error) {
	if form == nil {
		return newRequest(ctx, http.MethodPost, rawURL, nil, true)
	}
	req, err := newRequest(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()), true)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

// send runs req through client, turning transport failures into
// KindRequestFailed errors.
func send(client Doer, req *http.Request) (*http.Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindRequestFailed, Err: errors.Wrapf(err, "%s %s", req.Method, req.URL)}
	}
	if resp.Body == nil {
		resp.Body = ioutil.NopCloser(strings.NewReader(""))
	}
	return resp, nil
}

// closeBody drains and closes the body so the connection can be reused.
func closeBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(ioutil.Discard, resp.Body)
	_ = resp.Body.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// multipartFile streams in as the single file part of a multipart form.
//
// The returned reader must be consumed or closed, otherwise the writing
// goroutine never finishes.
func multipartFile(in io.Reader, field, fileName, contentType string) (io.ReadCloser, string) {
	bodyReader, bodyWriter := io.Pipe()
	writer := multipart.NewWriter(bodyWriter)

	go func() {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(field), quoteEscaper.Replace(fileName)))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)

		part, err := writer.CreatePart(h)
		if err != nil {
			_ = bodyWriter.CloseWithError(errors.Wrap(err, "failed to create form file"))
			return
		}
		if _, err = io.Copy(part, in); err != nil {
			_ = bodyWriter.CloseWithError(errors.Wrap(err, "failed to copy data"))
			return
		}
		if err = writer.Close(); err != nil {
			_ = bodyWriter.CloseWithError(errors.Wrap(err, "failed to close form"))
			return
		}
		_ = bodyWriter.Close()
	}()

	return bodyReader, writer.FormDataContentType()
}
