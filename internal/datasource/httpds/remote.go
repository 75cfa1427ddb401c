package httpds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"fileflow/internal/datasource"
	"fileflow/internal/source"
)

func init() { Register(Config{MaxRetries: 3}) }

// Register binds the http and https schemes to a client built from cfg,
// replacing any earlier binding.
func Register(cfg Config) {
	c := NewClient(cfg)
	f := func(loc string) datasource.Source { return NewRemote(c, loc) }
	datasource.Register("http", f)
	datasource.Register("https", f)
}

// Remote is a datasource.Source for one URL.
type Remote struct {
	client *Client
	url    string
}

var _ datasource.Source = (*Remote)(nil)

func NewRemote(c *Client, rawURL string) *Remote { return &Remote{client: c, url: rawURL} }

// Stat describes the remote object from a HEAD request. Servers that reject
// HEAD or omit Content-Length are asked for a one-byte range instead.
func (r *Remote) Stat(ctx context.Context) (source.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return source.Metadata{}, err
	}
	resp, err := r.client.Do(ctx, http.MethodHead, r.url, nil)
	if err != nil {
		return source.Metadata{}, fmt.Errorf("stat %s: %w", r.url, err)
	}
	_ = resp.Body.Close()

	size := resp.ContentLength
	switch {
	case resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented:
		size = -1
	case resp.StatusCode >= 300:
		return source.Metadata{}, statusError("stat", r.url, resp.StatusCode)
	}
	if size < 0 {
		if size, err = r.sizeByRange(ctx); err != nil {
			return source.Metadata{}, err
		}
	}

	md := source.Metadata{Name: r.name(), Path: r.url, Size: size}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if ts, err := http.ParseTime(lm); err == nil {
			md.ModTime = ts
		}
	}
	if md.ModTime.IsZero() {
		md.ModTime = time.Now()
	}
	return md, nil
}

// sizeByRange reads the total size from the Content-Range of a one-byte
// ranged GET.
func (r *Remote) sizeByRange(ctx context.Context) (int64, error) {
	h := http.Header{}
	h.Set("Range", "bytes=0-0")
	resp, err := r.client.Do(ctx, http.MethodGet, r.url, h)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", r.url, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent, http.StatusRequestedRangeNotSatisfiable:
		// "bytes 0-0/1234" or "bytes */0"
		cr := resp.Header.Get("Content-Range")
		if i := strings.LastIndexByte(cr, '/'); i >= 0 {
			if n, err := strconv.ParseInt(cr[i+1:], 10, 64); err == nil {
				return n, nil
			}
		}
		return 0, fmt.Errorf("stat %s: unusable Content-Range %q", r.url, cr)
	case http.StatusOK:
		if resp.ContentLength >= 0 {
			return resp.ContentLength, nil
		}
		return 0, fmt.Errorf("stat %s: server reports no size", r.url)
	default:
		return 0, statusError("stat", r.url, resp.StatusCode)
	}
}

func (r *Remote) name() string {
	if u, err := url.Parse(r.url); err == nil && u.Path != "" && u.Path != "/" {
		return path.Base(u.Path)
	}
	return r.url
}

// Open returns a stream positioned at the start of the object. No request
// is made until the first Read.
func (r *Remote) Open(ctx context.Context) (io.ReadSeekCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &rangeReader{ctx: ctx, r: r}, nil
}

// rangeReader streams the object from pos. Seeking drops the current
// response; the next Read asks for "bytes=pos-".
type rangeReader struct {
	ctx    context.Context
	r      *Remote
	pos    int64
	body   io.ReadCloser
	closed bool
}

func (rr *rangeReader) Read(p []byte) (int, error) {
	if rr.closed {
		return 0, fs.ErrClosed
	}
	if rr.body == nil {
		if err := rr.fetch(); err != nil {
			return 0, err
		}
	}
	n, err := rr.body.Read(p)
	rr.pos += int64(n)
	if err != nil && err != io.EOF {
		// Drop the broken response; a later Read starts a new range at pos.
		_ = rr.body.Close()
		rr.body = nil
		err = fmt.Errorf("read %s at %d: %w", rr.r.url, rr.pos, err)
	}
	return n, err
}

func (rr *rangeReader) fetch() error {
	h := http.Header{}
	if rr.pos > 0 {
		h.Set("Range", fmt.Sprintf("bytes=%d-", rr.pos))
	}
	resp, err := rr.r.client.Do(rr.ctx, http.MethodGet, rr.r.url, h)
	if err != nil {
		return fmt.Errorf("open %s: %w", rr.r.url, err)
	}
	switch resp.StatusCode {
	case http.StatusPartialContent:
	case http.StatusOK:
		if rr.pos > 0 {
			// The server ignored Range; skip to pos.
			if _, err := io.CopyN(io.Discard, resp.Body, rr.pos); err != nil {
				_ = resp.Body.Close()
				if errors.Is(err, io.EOF) {
					rr.body = http.NoBody
					return nil
				}
				return fmt.Errorf("open %s: skip to %d: %w", rr.r.url, rr.pos, err)
			}
		}
	case http.StatusRequestedRangeNotSatisfiable:
		// pos is at or past the end.
		_ = resp.Body.Close()
		rr.body = http.NoBody
		return nil
	default:
		_ = resp.Body.Close()
		return statusError("open", rr.r.url, resp.StatusCode)
	}
	rr.body = resp.Body
	return nil
}

func (rr *rangeReader) Seek(offset int64, whence int) (int64, error) {
	if rr.closed {
		return 0, fs.ErrClosed
	}
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = rr.pos + offset
	default:
		return rr.pos, fmt.Errorf("seek %s: whence %d not supported", rr.r.url, whence)
	}
	if pos < 0 {
		return rr.pos, fmt.Errorf("seek %s: negative position %d", rr.r.url, pos)
	}
	if pos != rr.pos && rr.body != nil {
		_ = rr.body.Close()
		rr.body = nil
	}
	rr.pos = pos
	return pos, nil
}

func (rr *rangeReader) Close() error {
	if rr.closed {
		return nil
	}
	rr.closed = true
	if rr.body != nil {
		return rr.body.Close()
	}
	return nil
}

// statusError maps missing and forbidden objects onto the fs sentinels so
// callers can use errors.Is like they do for local files.
func statusError(op, rawURL string, code int) error {
	switch code {
	case http.StatusNotFound, http.StatusGone:
		return fmt.Errorf("%s %s: %w", op, rawURL, fs.ErrNotExist)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s %s: %w", op, rawURL, fs.ErrPermission)
	}
	return fmt.Errorf("%s %s: unexpected status %d", op, rawURL, code)
}
