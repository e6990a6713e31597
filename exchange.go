package bosh

// DeferredResponse is the handle an HTTPSender returns immediately from
// Send; the request has not necessarily completed by the time Send returns.
// Status and Body each block the caller until the response is available,
// and must return a TransportError if the exchange was canceled or the
// transport failed.
type DeferredResponse interface {
	Status() (int, error)
	Body() (*Body, error)
}

// exchangeState tracks an Exchange through the lifecycle named in
// spec.md §3, starting from dispatched: an Exchange object is only created
// once its request has already been handed to the sender, so the "queued"
// position in that lifecycle is held by the raw Body, not yet an Exchange.
type exchangeState int

const (
	exchangeDispatched exchangeState = iota
	exchangeResponded
	exchangeIntegrated
	exchangeRemoved
)

// Exchange pairs one outbound request Body with its deferred response. The
// scheduler owns every Exchange exclusively until it is removed after
// response integration or session disposal.
type Exchange struct {
	rid   int64
	req   *Body
	resp  DeferredResponse
	state exchangeState

	// claimed is set by a worker when it takes this Exchange off the
	// queue, so other workers skip it without a second map or pointer
	// comparison against every live worker (jbosh's findProcessorForExchange
	// is a linear scan over worker slots; a flag on the exchange itself is
	// equivalent and simpler).
	claimed bool
}

// RID returns the request ID this exchange was assigned.
func (e *Exchange) RID() int64 { return e.rid }

// Request returns the body that was sent.
func (e *Exchange) Request() *Body { return e.req }
