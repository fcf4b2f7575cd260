package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jlaffaye/ftp"

	"github.com/ecopulse/ecopulse/internal/httputil"
	"github.com/ecopulse/ecopulse/internal/metrics"
)

// Opener opens a feed location for reading.
type Opener interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// SourceOpener reads feeds from local paths, file://, http(s):// and ftp://
// URLs.
type SourceOpener struct {
	client     *http.Client
	ftpTimeout time.Duration
	newBackOff func() backoff.BackOff
}

func NewSourceOpener(client *http.Client) *SourceOpener {
	if client == nil {
		client = httputil.NewClient(0)
	}
	return &SourceOpener{
		client:     client,
		ftpTimeout: 30 * time.Second,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.MaxElapsedTime = 2 * time.Minute
			return bo
		},
	}
}

func (o *SourceOpener) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	u, err := url.Parse(location)
	scheme := "file"
	// Single-letter schemes are Windows drive letters.
	if err == nil && len(u.Scheme) > 1 {
		scheme = strings.ToLower(u.Scheme)
	}

	start := time.Now()
	defer func() {
		metrics.FeedFetchLatency.WithLabelValues(scheme).Observe(time.Since(start).Seconds())
	}()

	switch scheme {
	case "file":
		path := location
		if u != nil && strings.EqualFold(u.Scheme, "file") {
			path = u.Path
		}
		return os.Open(path)
	case "http", "https":
		return o.openHTTP(ctx, location)
	case "ftp":
		return o.openFTP(ctx, u)
	default:
		return nil, fmt.Errorf("unsupported feed scheme %q", scheme)
	}
}

func (o *SourceOpener) openHTTP(ctx context.Context, location string) (io.ReadCloser, error) {
	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		resp, err := o.client.Do(req)
		if err != nil {
			return fmt.Errorf("fetch feed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("fetch feed: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return backoff.Permanent(fmt.Errorf("fetch feed: status %d: %s", resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(o.newBackOff(), ctx)); err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (o *SourceOpener) openFTP(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	addr := u.Host
	if u.Port() == "" {
		addr = net.JoinHostPort(u.Hostname(), "21")
	}

	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(o.ftpTimeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("ftp dial: %w", err)
	}

	user, pass := "anonymous", "anonymous"
	if u.User != nil {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			pass = p
		}
	}
	if err := conn.Login(user, pass); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("ftp login: %w", err)
	}

	resp, err := conn.Retr(u.Path)
	if err != nil {
		conn.Quit()
		return nil, fmt.Errorf("ftp retr: %w", err)
	}
	return &ftpFile{resp: resp, conn: conn}, nil
}

// ftpFile closes the control connection along with the transfer.
type ftpFile struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (f *ftpFile) Read(p []byte) (int, error) {
	return f.resp.Read(p)
}

func (f *ftpFile) Close() error {
	err := f.resp.Close()
	if qerr := f.conn.Quit(); err == nil {
		err = qerr
	}
	return err
}
