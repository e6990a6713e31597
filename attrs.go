package bosh

import (
	"strconv"
	"strings"
	"time"
)

// parseSeconds parses a non-negative integer number of seconds, the shared
// form of wait, inactivity, polling and maxpause. An empty string is a valid
// "absent" value and returns (0, false, nil).
func parseSeconds(attr, s string) (time.Duration, bool, error) {
	if s == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false, &ParseError{Attr: attr, Value: s, Err: err}
	}
	return time.Duration(n) * time.Second, true, nil
}

func parseInactivity(s string) (time.Duration, bool, error) { return parseSeconds("inactivity", s) }
func parsePolling(s string) (time.Duration, bool, error)    { return parseSeconds("polling", s) }
func parseMaxPause(s string) (time.Duration, bool, error)   { return parseSeconds("maxpause", s) }
func parsePause(s string) (time.Duration, bool, error)      { return parseSeconds("pause", s) }
func parseWait(s string) (time.Duration, bool, error)       { return parseSeconds("wait", s) }

// parseRequests parses the requests attribute, which bounds concurrent
// request count rather than a duration.
func parseRequests(s string) (int, bool, error) {
	if s == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false, &ParseError{Attr: "requests", Value: s, Err: err}
	}
	return n, true, nil
}

// parseHold parses the hold attribute.
func parseHold(s string) (int, bool, error) {
	if s == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false, &ParseError{Attr: "hold", Value: s, Err: err}
	}
	return n, true, nil
}

// parseRID parses a request identifier attribute value (rid, ack, report).
func parseRID(attr, s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, &ParseError{Attr: attr, Value: s, Err: err}
	}
	return n, nil
}

// parseAccept parses the comma-or-space separated accept token list into
// a set, per spec.md §4.6.
func parseAccept(s string) (map[string]bool, error) {
	if s == "" {
		return nil, nil
	}
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	out := make(map[string]bool, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		out[strings.ToLower(f)] = true
	}
	return out, nil
}
