package bosh

import "time"

// SessionParams holds the connection manager's session-creation response
// attributes, populated exactly once per session from fromSessionInit.
type SessionParams struct {
	SID        string
	Wait       time.Duration
	Requests   int // at least 1 once parsed; admission control treats 0 as unbounded
	Hold       int
	Polling    time.Duration
	Inactivity time.Duration
	MaxPause   time.Duration
	HasMaxPause bool
	Accept     map[string]bool
	AckEnabled bool
	Version    Version
}

// fromSessionInit parses the connection manager's first response against
// the request that produced it. It fails with a ProtocolError if sid is
// absent, and with a ParseError if a numeric attribute (including ack) is
// malformed. An ack that parses but does not echo the session-creation
// request's rid is not an error: it leaves AckEnabled false.
func fromSessionInit(reqRID int64, resp *Body) (*SessionParams, error) {
	sid, ok := resp.Attr("sid")
	if !ok || sid == "" {
		return nil, &ProtocolError{Msg: "session-creation response missing sid"}
	}

	p := &SessionParams{SID: sid}

	waitStr, _ := resp.Attr("wait")
	wait, _, err := parseWait(waitStr)
	if err != nil {
		return nil, err
	}
	p.Wait = wait

	verStr, _ := resp.Attr("ver")
	ver, err := parseVersion(verStr)
	if err != nil {
		return nil, err
	}
	p.Version = ver

	reqStr, hasRequests := resp.Attr("requests")
	requests, _, err := parseRequests(reqStr)
	if err != nil {
		return nil, err
	}
	switch {
	case hasRequests:
		p.Requests = requests
	case ver.IsZero():
		// Neither requests nor version advertised: legacy CM, serialize.
		p.Requests = 1
	default:
		p.Requests = 2
	}

	holdStr, _ := resp.Attr("hold")
	hold, _, err := parseHold(holdStr)
	if err != nil {
		return nil, err
	}
	p.Hold = hold

	pollStr, _ := resp.Attr("polling")
	polling, _, err := parsePolling(pollStr)
	if err != nil {
		return nil, err
	}
	p.Polling = polling

	inactStr, _ := resp.Attr("inactivity")
	inactivity, _, err := parseInactivity(inactStr)
	if err != nil {
		return nil, err
	}
	p.Inactivity = inactivity

	mpStr, hasMP := resp.Attr("maxpause")
	maxPause, _, err := parseMaxPause(mpStr)
	if err != nil {
		return nil, err
	}
	p.MaxPause = maxPause
	p.HasMaxPause = hasMP

	acceptStr, _ := resp.Attr("accept")
	accept, err := parseAccept(acceptStr)
	if err != nil {
		return nil, err
	}
	p.Accept = accept

	if ackStr, hasAck := resp.Attr("ack"); hasAck {
		ack, err := parseRID("ack", ackStr)
		if err != nil {
			return nil, err
		}
		p.AckEnabled = ack == reqRID
	}

	return p, nil
}
