package bosh

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pion/logging"
)

// supportedVersion is the highest BOSH protocol version this client
// advertises in the session-creation request.
var supportedVersion = Version{Major: 1, Minor: 6}

// State is the session lifecycle position named in spec.md §4.4.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateEstablished
	StateTerminating
	StateClosed
)

var errClientClosed = &TerminalBinding{Condition: "client-closed"}

// Client is the session state machine and request scheduler: the single
// component this library exists to provide. One Client drives one BOSH
// session end to end, from the session-creation request through disposal.
//
// A Client is safe for concurrent use by multiple goroutines.
type Client struct {
	cfg    *ClientConfig
	sender HTTPSender
	rid    *ridSeq
	log    logging.LeveledLogger

	mu      sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	drained  *sync.Cond

	working     bool
	state       State
	params      *SessionParams
	queue       []*Exchange
	ack         *ackState
	workerCount int
	emptyTimer  *time.Timer

	connListeners listenerSet[ConnectionListener]
	reqListeners  listenerSet[RequestListener]
	respListeners listenerSet[ResponseListener]

	disposeOnce sync.Once
}

// NewClient constructs a Client against cfg and sender, initializes sender
// with cfg, and starts the first processor worker. The session itself does
// not begin until the first Send.
func NewClient(cfg *ClientConfig, sender HTTPSender) (*Client, error) {
	rid, err := newRIDSeq()
	if err != nil {
		return nil, err
	}
	if err := sender.Init(cfg); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:     cfg,
		sender:  sender,
		rid:     rid,
		working: true,
		state:   StateIdle,
		ack:     newAckState(),
	}
	c.notEmpty = sync.NewCond(&c.mu)
	c.notFull = sync.NewCond(&c.mu)
	c.drained = sync.NewCond(&c.mu)
	if cfg.LoggerFactory != nil {
		c.log = cfg.LoggerFactory.NewLogger("bosh-client")
	}

	c.workerCount = 1
	go c.processLoop(0)

	return c, nil
}

// State reports the current lifecycle position.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionParams returns the negotiated session parameters, or nil if the
// session has not yet been established.
func (c *Client) SessionParams() *SessionParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// Send transmits body to the connection manager, blocking while the
// session is working and admission control denies the send. Once the
// session has been disposed it fails with ErrSessionClosed for any body
// that is not itself a termination.
func (c *Client) Send(body *Body) error {
	return c.send(context.Background(), body)
}

// Disconnect sends body (or an empty body if nil) tagged type=terminate,
// beginning the Terminating state.
func (c *Client) Disconnect(body *Body) error {
	var b *Builder
	if body != nil {
		b = body.Rebuild()
	} else {
		b = NewBuilder()
	}
	b.SetAttr("type", "terminate")
	return c.send(context.Background(), b.Build())
}

// Pause requests a temporary suspension of up to the CM-advertised
// maxpause, returning false without sending anything if the CM never
// advertised maxpause support.
func (c *Client) Pause() (bool, error) {
	c.mu.Lock()
	if c.params == nil || !c.params.HasMaxPause {
		c.mu.Unlock()
		return false, nil
	}
	maxPause := c.params.MaxPause
	c.mu.Unlock()

	b := NewBuilder().SetAttr("pause", strconv.Itoa(int(maxPause/time.Second))).Build()
	if err := c.send(context.Background(), b); err != nil {
		return false, err
	}
	return true, nil
}

// Close forcibly disposes the session without sending anything.
func (c *Client) Close() {
	c.dispose(errClientClosed)
}

// Drain blocks until the exchange queue is empty and no empty-request send
// is currently scheduled, or until the session stops working.
func (c *Client) Drain() {
	c.mu.Lock()
	for c.working && (len(c.queue) > 0 || c.emptyTimer != nil) {
		c.drained.Wait()
	}
	c.mu.Unlock()
}

// AddConnectionListener registers fn and returns a function that removes
// it.
func (c *Client) AddConnectionListener(fn ConnectionListener) func() {
	id := c.connListeners.add(fn)
	return func() { c.connListeners.remove(id) }
}

// AddRequestListener registers fn and returns a function that removes it.
func (c *Client) AddRequestListener(fn RequestListener) func() {
	id := c.reqListeners.add(fn)
	return func() { c.reqListeners.remove(id) }
}

// AddResponseListener registers fn and returns a function that removes it.
func (c *Client) AddResponseListener(fn ResponseListener) func() {
	id := c.respListeners.add(fn)
	return func() { c.respListeners.remove(id) }
}

func (c *Client) send(ctx context.Context, body *Body) error {
	c.mu.Lock()
	for c.working && !c.immediatelySendableLocked(body) {
		c.notFull.Wait()
	}
	if !c.working && !isTermination(body) {
		c.mu.Unlock()
		return ErrSessionClosed
	}

	rid := c.rid.Next()
	var finalBody *Body
	if c.params == nil && len(c.queue) == 0 {
		finalBody = c.applySessionCreationRequest(rid, body)
		c.state = StateConnecting
	} else {
		finalBody = c.applySessionData(rid, body)
		if isTermination(finalBody) {
			c.state = StateTerminating
		}
	}
	paramsSnapshot := c.params
	c.stopEmptyTimerLocked()
	c.mu.Unlock()

	deferred, err := c.sender.Send(ctx, paramsSnapshot, finalBody)
	if err != nil {
		terr := &TransportError{Err: err}
		c.dispose(terr)
		return terr
	}

	c.mu.Lock()
	if !c.working && !isTermination(finalBody) {
		c.mu.Unlock()
		return ErrSessionClosed
	}
	exch := &Exchange{rid: rid, req: finalBody, resp: deferred, state: exchangeDispatched}
	c.queue = append(c.queue, exch)
	if c.params != nil && c.params.AckEnabled {
		c.ack.trackRequest(exch)
	}
	c.notEmpty.Signal()
	c.mu.Unlock()

	c.dispatchRequestSent(finalBody)
	return nil
}

// immediatelySendableLocked implements the admission rules of spec.md §4.4.
func (c *Client) immediatelySendableLocked(body *Body) bool {
	if c.params == nil {
		return len(c.queue) == 0
	}
	r := c.params.Requests
	n := len(c.queue)
	if r <= 0 {
		return true
	}
	if n < r {
		return true
	}
	if n == r && (isTermination(body) || hasPause(body)) {
		return true
	}
	return false
}

func (c *Client) applySessionCreationRequest(rid int64, orig *Body) *Body {
	b := orig.Rebuild()
	if c.cfg.To != "" {
		b.SetAttr("to", c.cfg.To)
	}
	if c.cfg.Lang != "" {
		b.Set(XMLQName("lang"), c.cfg.Lang)
	}
	b.SetAttr("ver", supportedVersion.String())
	b.SetAttr("wait", "60")
	b.SetAttr("hold", "1")
	b.SetAttr("rid", strconv.FormatInt(rid, 10))
	if c.cfg.Route != "" {
		b.SetAttr("route", c.cfg.Route)
	}
	if c.cfg.From != "" {
		b.SetAttr("from", c.cfg.From)
	}
	if c.cfg.RequestAck {
		b.SetAttr("ack", "1")
	}
	b.Unset(NewQName("sid"))
	return b.Build()
}

func (c *Client) applySessionData(rid int64, orig *Body) *Body {
	b := orig.Rebuild()
	b.SetAttr("sid", c.params.SID)
	b.SetAttr("rid", strconv.FormatInt(rid, 10))
	if c.params.AckEnabled {
		c.applyResponseAckLocked(b, rid)
	}
	return b.Build()
}

// applyResponseAckLocked stamps ack on b per the implicit-ack rule: the
// attribute is omitted when responseAck equals rid-1, since the CM can
// infer it from having answered the previous request.
func (c *Client) applyResponseAckLocked(b *Builder, rid int64) {
	if c.ack.responseAck == -1 {
		return
	}
	if c.ack.responseAck == rid-1 {
		return
	}
	b.SetAttr("ack", strconv.FormatInt(c.ack.responseAck, 10))
}

func isTermination(b *Body) bool {
	t, _ := b.Attr("type")
	return t == "terminate"
}

func hasPause(b *Body) bool {
	_, ok := b.Attr("pause")
	return ok
}

func isRecoverableBindingCondition(resp *Body) bool {
	t, _ := resp.Attr("type")
	return t == "error"
}

// processLoop is one worker: claim a queued exchange, await its response,
// integrate it, repeat. The worker pool grows once session params are
// known; every worker runs this same loop regardless of when it started.
func (c *Client) processLoop(idx int) {
	for {
		c.mu.Lock()
		var exch *Exchange
		for {
			if !c.working {
				c.mu.Unlock()
				return
			}
			exch = c.claimNextLocked()
			if exch != nil {
				break
			}
			c.notEmpty.Wait()
		}
		c.mu.Unlock()
		c.processExchange(exch)
	}
}

func (c *Client) claimNextLocked() *Exchange {
	for _, e := range c.queue {
		if !e.claimed {
			e.claimed = true
			return e
		}
	}
	return nil
}

func (c *Client) processExchange(exch *Exchange) {
	status, err := exch.resp.Status()
	var respBody *Body
	if err == nil {
		respBody, err = exch.resp.Body()
	}
	if err != nil {
		c.dispose(&TransportError{Err: err})
		return
	}

	exch.state = exchangeResponded
	c.dispatchResponseReceived(respBody)

	c.mu.Lock()

	if c.params == nil {
		params, perr := fromSessionInit(exch.rid, respBody)
		if perr != nil {
			c.mu.Unlock()
			c.dispose(perr)
			return
		}
		c.params = params
		c.growWorkersLocked(params.Requests)
		if c.log != nil && params.Requests <= 1 && params.Hold == 1 {
			c.log.Warnf("connection manager advertises requests=%d with hold=1; session degrades to pure polling", params.Requests)
		}
		c.state = StateEstablished
		c.mu.Unlock()
		c.dispatchEstablished()
		c.mu.Lock()
	}

	if cond, isErr := c.terminalBindingConditionLocked(respBody, status); isErr {
		c.removeExchangeLocked(exch)
		c.mu.Unlock()
		c.dispose(&TerminalBinding{Condition: cond})
		return
	}
	if isTermination(respBody) {
		c.removeExchangeLocked(exch)
		c.mu.Unlock()
		c.dispose(nil)
		return
	}

	var toResend []*Exchange
	if isRecoverableBindingCondition(respBody) {
		for _, e := range c.queue {
			toResend = append(toResend, &Exchange{rid: e.rid, req: e.req})
		}
	} else {
		replay, aerr := c.integrateAckLocked(exch, respBody)
		if aerr != nil {
			c.removeExchangeLocked(exch)
			c.mu.Unlock()
			c.dispose(aerr)
			return
		}
		if replay != nil {
			toResend = append(toResend, replay)
		}
	}

	exch.state = exchangeIntegrated
	c.removeExchangeLocked(exch)
	if len(c.queue) == 0 {
		c.scheduleEmptyRequestLocked(c.processPauseRequestLocked(exch.req))
	}
	c.notFull.Signal()
	c.drained.Signal()
	c.mu.Unlock()

	for _, e := range toResend {
		c.resend(e)
	}
}

// terminalBindingConditionLocked implements spec.md §4.4's terminal
// condition rule. A type=terminate response only counts as an *error*
// disposal when it names a condition; an unconditioned terminate (the
// client's own disconnect, echoed back) is a normal close handled by the
// caller separately. Returns (condition, true) when the session must
// dispose with a TerminalBinding cause.
func (c *Client) terminalBindingConditionLocked(resp *Body, status int) (string, bool) {
	if isTermination(resp) {
		cond, hasCond := resp.Attr("condition")
		if hasCond && cond != "" {
			return cond, true
		}
		return "", false
	}
	if c.params != nil && c.params.Version.IsZero() && status != 200 {
		switch status {
		case 400:
			return "bad-request", true
		case 403:
			return "policy-violation", true
		case 404:
			return "item-not-found", true
		default:
			return "undefined-condition", true
		}
	}
	return "", false
}

// integrateAckLocked runs the ack engine of spec.md §4.5 and returns an
// exchange to resend when the response carried an ack report, or an
// AckReportUnresolved error when the reported rid cannot be found.
func (c *Client) integrateAckLocked(exch *Exchange, resp *Body) (*Exchange, error) {
	if c.params.AckEnabled {
		if _, hasReport := resp.Attr("report"); !hasReport {
			ackUpTo := exch.rid
			if ackStr, ok := resp.Attr("ack"); ok {
				if parsed, err := parseRID("ack", ackStr); err == nil {
					ackUpTo = parsed
				}
			}
			c.ack.ackRequestsUpTo(ackUpTo)
		}
	}

	c.ack.integrateResponseAck(exch.rid)

	reportStr, ok := resp.Attr("report")
	if !ok {
		return nil, nil
	}
	k, err := parseRID("report", reportStr)
	if err != nil {
		return nil, nil
	}
	pending := c.ack.findPendingRequest(k)
	if pending == nil {
		return nil, &AckReportUnresolved{RID: k}
	}
	return &Exchange{rid: pending.rid, req: pending.req}, nil
}

func (c *Client) removeExchangeLocked(exch *Exchange) {
	for i, e := range c.queue {
		if e == exch {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			exch.state = exchangeRemoved
			return
		}
	}
}

// growWorkersLocked starts additional processor goroutines up to target,
// the Go analogue of jbosh's RequestProcessor array growth once requests
// is learned from the connection manager.
func (c *Client) growWorkersLocked(target int) {
	if target <= c.workerCount {
		return
	}
	for i := c.workerCount; i < target; i++ {
		go c.processLoop(i)
	}
	c.workerCount = target
}

func (c *Client) scheduleEmptyRequestLocked(delay time.Duration) {
	c.stopEmptyTimerLocked()
	if !c.working {
		return
	}
	if delay < 0 {
		delay = 0
	}
	c.emptyTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		c.emptyTimer = nil
		c.drained.Broadcast()
		c.mu.Unlock()
		c.sendEmptyRequest()
	})
	c.drained.Signal()
}

func (c *Client) stopEmptyTimerLocked() {
	if c.emptyTimer != nil {
		c.emptyTimer.Stop()
		c.emptyTimer = nil
	}
}

func (c *Client) sendEmptyRequest() {
	if err := c.send(context.Background(), NewBuilder().Build()); err != nil && err != ErrSessionClosed {
		c.dispose(err)
	}
}

// processPauseRequestLocked computes the delay before the next
// empty-request send, per spec.md §4.4 and the pause-margin note in §9.
func (c *Client) processPauseRequestLocked(req *Body) time.Duration {
	if c.params != nil && c.params.HasMaxPause {
		if pauseStr, ok := req.Attr("pause"); ok {
			pause, _, err := parsePause(pauseStr)
			if err == nil {
				d := pause - c.cfg.PauseMargin
				if d < c.cfg.EmptyRequestDelay {
					d = c.cfg.EmptyRequestDelay
				}
				return d
			}
		}
	}
	return c.defaultEmptyRequestDelayLocked()
}

func (c *Client) defaultEmptyRequestDelayLocked() time.Duration {
	if c.params != nil && c.params.Requests <= 1 && c.params.Polling > 0 {
		return c.params.Polling
	}
	return c.cfg.EmptyRequestDelay
}

// resend dispatches a duplicate of e's exact request body under its
// original rid, bypassing admission control, used for recoverable-error
// retransmission and ack-report replay.
func (c *Client) resend(e *Exchange) {
	c.mu.Lock()
	if !c.working {
		c.mu.Unlock()
		return
	}
	params := c.params
	c.mu.Unlock()

	deferred, err := c.sender.Send(context.Background(), params, e.req)
	if err != nil {
		c.dispose(&TransportError{Err: err})
		return
	}

	c.mu.Lock()
	if !c.working {
		c.mu.Unlock()
		return
	}
	fresh := &Exchange{rid: e.rid, req: e.req, resp: deferred, state: exchangeDispatched}
	c.queue = append(c.queue, fresh)
	c.notEmpty.Signal()
	c.mu.Unlock()

	c.dispatchRequestSent(e.req)
}

// dispose tears the session down exactly once: it stops admitting sends,
// wakes every waiter, fires the terminal connection event, and releases the
// sender. cause nil means an orderly close-on-disconnect; non-nil means
// closed-on-error.
func (c *Client) dispose(cause error) {
	c.disposeOnce.Do(func() {
		c.mu.Lock()
		c.working = false
		c.state = StateClosed
		pendingBodies := make([]*Body, 0, len(c.ack.pendingRequestAcks))
		for _, e := range c.ack.pendingRequestAcks {
			pendingBodies = append(pendingBodies, e.req)
		}
		c.stopEmptyTimerLocked()
		c.queue = nil
		c.notEmpty.Broadcast()
		c.notFull.Broadcast()
		c.mu.Unlock()

		dispatch(&c.connListeners, func(fn ConnectionListener) {
			fn(ConnectionEvent{
				Closed:             true,
				Cause:              cause,
				PendingRequestAcks: pendingBodies,
			})
		}, c.logPanic)

		c.mu.Lock()
		c.drained.Broadcast()
		c.mu.Unlock()

		c.sender.Destroy()
	})
}

func (c *Client) dispatchEstablished() {
	dispatch(&c.connListeners, func(fn ConnectionListener) {
		fn(ConnectionEvent{Established: true})
	}, c.logPanic)
}

func (c *Client) dispatchRequestSent(b *Body) {
	dispatch(&c.reqListeners, func(fn RequestListener) {
		fn(RequestEvent{Body: b})
	}, c.logPanic)
}

func (c *Client) dispatchResponseReceived(b *Body) {
	dispatch(&c.respListeners, func(fn ResponseListener) {
		fn(ResponseEvent{Body: b})
	}, c.logPanic)
}

func (c *Client) logPanic(r interface{}) {
	if c.log != nil {
		c.log.Warnf("bosh: listener panic: %v", r)
	}
}
