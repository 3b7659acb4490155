package inverter

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"codeberg.org/halvor/sunmon/internal/errors"
	"codeberg.org/halvor/sunmon/internal/logger"
)

const (
	statusPath = "/status.html"

	// The inverter's web server is a slow single-threaded device. Anything
	// beyond fetchTimeout means it is stuck, busy, or powered down, and the
	// timeout must stay below the minimum polling interval so ticks cannot
	// back up.
	fetchTimeout   = 10 * time.Second
	connectTimeout = 5 * time.Second
	verifyTimeout  = 30 * time.Second

	maxResponseBytes = 1 << 20
	dumpFilePerm     = 0o644
)

// Client fetches the status page of one inverter over HTTP Basic Auth.
type Client struct {
	host     string
	username string
	password string
	http     *http.Client
}

func NewClient(host, username, password string) *Client {
	return &Client{
		host:     host,
		username: username,
		password: password,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: connectTimeout,
				}).DialContext,
			},
		},
	}
}

// Fetch performs one authenticated GET against the status endpoint and
// returns the raw response body.
func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	return c.get(fetchCtx)
}

// Verify checks that the device answers with a recognizable status page.
// Used at configuration time, before any polling starts, with a more
// generous timeout than the polling fetch.
func (c *Client) Verify(ctx context.Context) error {
	verifyCtx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	body, err := c.get(verifyCtx)
	if err != nil {
		return err
	}

	_, err = Extract(body)

	return err
}

// DumpResponse writes the raw status page verbatim to path for offline
// debugging. Side operation only; it shares nothing with the polling cycle.
func (c *Client) DumpResponse(ctx context.Context, path string) error {
	errFactory := errors.New()

	body, err := c.Fetch(ctx)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, body, dumpFilePerm); err != nil {
		return errFactory.Wrap(ErrDumpFailed, err)
	}

	logger.Info().
		Str("host", c.host).
		Str("path", path).
		Int("bytes", len(body)).
		Msg("Raw device response written")

	return nil
}

func (c *Client) get(ctx context.Context) ([]byte, error) {
	errFactory := errors.New()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+c.host+statusPath, nil)
	if err != nil {
		return nil, errFactory.Wrap(ErrRequestFailed, err)
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, errFactory.New(ErrAuthFailed)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errFactory.WithData(ErrHTTPStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransportError(err)
	}

	return body, nil
}

func classifyTransportError(err error) error {
	errFactory := errors.New()

	if errors.Is(err, context.DeadlineExceeded) {
		return errFactory.Wrap(ErrFetchTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errFactory.Wrap(ErrFetchTimeout, err)
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return errFactory.Wrap(ErrConnectionRefused, err)
	}

	return errFactory.Wrap(ErrRequestFailed, err)
}
