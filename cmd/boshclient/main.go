// Command boshclient opens a BOSH session against a connection manager with
// an empty session-creation request, keeps the session open for two seconds
// (the client sends its own empty keepalives meanwhile), and disconnects.
// It exists to exercise the
// library end to end from the command line, not as a production tool.
package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/pion/logging"

	"github.com/skriptble/bosh"
)

var (
	uri   = flag.String("uri", "http://localhost:8088/", "connection manager HTTP endpoint")
	to    = flag.String("to", "localhost", "XMPP domain to bind the session to")
	route = flag.String("route", "", "optional BOSH route attribute")
)

func init() {
	log.SetOutput(os.Stderr)
}

func main() {
	flag.Parse()

	factory := logging.NewDefaultLoggerFactory()
	cfg := bosh.NewClientConfig(*uri).
		To(*to).
		Route(*route).
		WithLoggerFactory(factory).
		Build()

	sender := bosh.NewDefaultSender(nil)
	client, err := bosh.NewClient(cfg, sender)
	if err != nil {
		log.Fatalf("boshclient: %v", err)
	}

	client.AddConnectionListener(func(ev bosh.ConnectionEvent) {
		switch {
		case ev.Established:
			log.Printf("session established: %+v", client.SessionParams())
		case ev.Closed:
			log.Printf("session closed: cause=%v", ev.Cause)
		}
	})

	if err := client.Send(bosh.NewBuilder().Build()); err != nil {
		log.Fatalf("boshclient: send: %v", err)
	}

	time.Sleep(2 * time.Second)

	if err := client.Disconnect(nil); err != nil {
		log.Fatalf("boshclient: disconnect: %v", err)
	}

	client.Drain()
}
