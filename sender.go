package bosh

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/pion/logging"
)

// HTTPSender is the pluggable transport collaborator described in
// spec.md §4.7. Implementations must be safe for concurrent Send calls and
// must not retain session-level state beyond what Init hands them.
type HTTPSender interface {
	Init(cfg *ClientConfig) error
	Destroy()
	Send(ctx context.Context, params *SessionParams, body *Body) (DeferredResponse, error)
}

// deferredHTTP is the DeferredResponse returned by DefaultSender. Status and
// Body block on a channel fed by the goroutine that issued the request.
type deferredHTTP struct {
	done   chan struct{}
	status int
	body   *Body
	err    error
}

func (d *deferredHTTP) Status() (int, error) {
	<-d.done
	return d.status, d.err
}

func (d *deferredHTTP) Body() (*Body, error) {
	<-d.done
	return d.body, d.err
}

// DefaultSender is a net/http-backed HTTPSender, usable with zero
// configuration. It holds no session-affine state beyond a shared client,
// so one instance may be reused across sessions.
type DefaultSender struct {
	client *http.Client
	log    logging.LeveledLogger

	mu  sync.Mutex
	cfg *ClientConfig
}

// NewDefaultSender constructs a DefaultSender around client, or a fresh
// http.Client if client is nil.
func NewDefaultSender(client *http.Client) *DefaultSender {
	if client == nil {
		client = &http.Client{}
	}
	return &DefaultSender{client: client}
}

// Init records the client configuration and acquires a logger for this
// sender's own diagnostics, independent of the Client's own logger.
func (s *DefaultSender) Init(cfg *ClientConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	if cfg.LoggerFactory != nil {
		s.log = cfg.LoggerFactory.NewLogger("bosh-sender")
	}
	return nil
}

// Destroy releases idle connections held by the underlying client.
func (s *DefaultSender) Destroy() {
	s.client.CloseIdleConnections()
}

// Send issues body as an HTTP POST against the session's CM URI and returns
// immediately with a DeferredResponse; the POST itself runs on a background
// goroutine so Send never blocks the caller on network I/O.
func (s *DefaultSender) Send(ctx context.Context, params *SessionParams, body *Body) (DeferredResponse, error) {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	payload := body.ToXML()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URI, bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.ContentLength = int64(len(payload))
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	if cfg.Compression {
		// Accept-Encoding advertises what this client can decode on the
		// response; it is offered unconditionally once compression is
		// enabled, not gated on the CM's own accept set (params.Accept is
		// the CM→client direction: what the CM will decode on requests).
		req.Header.Set("Accept-Encoding", "deflate, gzip")
	}

	d := &deferredHTTP{done: make(chan struct{})}
	go s.do(req, d)
	return d, nil
}

func (s *DefaultSender) do(req *http.Request, d *deferredHTTP) {
	defer close(d.done)
	if s.log != nil {
		s.log.Debugf("bosh: POST %s", req.URL)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		d.err = &TransportError{Err: err}
		return
	}
	defer resp.Body.Close()
	d.status = resp.StatusCode

	reader, err := decodeBody(resp)
	if err != nil {
		d.err = &TransportError{Err: err}
		return
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		d.err = &TransportError{Err: err}
		return
	}
	if len(raw) == 0 {
		return
	}
	parsed, err := ParseBody(raw)
	if err != nil {
		d.err = err
		return
	}
	d.body = parsed
}

func decodeBody(resp *http.Response) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "deflate":
		return flate.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}
