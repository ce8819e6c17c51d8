package proxy

import (
	"fmt"
	"net"
	"net/textproto"
	"strings"
	"time"
)

// TorController speaks the minimum of the Tor control protocol needed here:
// authenticate, signal NEWNYM, quit.
type TorController struct {
	addr        string
	password    string
	dialTimeout time.Duration
}

func NewTorController(addr string) *TorController {
	return &TorController{addr: addr, dialTimeout: 3 * time.Second}
}

// Alive reports whether the control port accepts connections.
func (t *TorController) Alive() bool {
	conn, err := net.DialTimeout("tcp", t.addr, t.dialTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// RenewIdentity authenticates against the control port and sends
// SIGNAL NEWNYM.
func (t *TorController) RenewIdentity() error {
	conn, err := net.DialTimeout("tcp", t.addr, t.dialTimeout)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTorUnavailable, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(10 * time.Second))

	tp := textproto.NewConn(conn)

	auth := "AUTHENTICATE"
	if t.password != "" {
		auth = fmt.Sprintf("AUTHENTICATE %q", t.password)
	}
	if err := t.roundTrip(tp, auth); err != nil {
		return fmt.Errorf("tor authentication failed: %w", err)
	}
	if err := t.roundTrip(tp, "SIGNAL NEWNYM"); err != nil {
		return fmt.Errorf("tor NEWNYM signal failed: %w", err)
	}
	// Best effort; the circuit change is already requested.
	tp.PrintfLine("QUIT")
	return nil
}

func (t *TorController) roundTrip(tp *textproto.Conn, cmd string) error {
	if err := tp.PrintfLine("%s", cmd); err != nil {
		return err
	}
	line, err := tp.ReadLine()
	if err != nil {
		return err
	}
	if !strings.HasPrefix(line, "250") {
		return fmt.Errorf("unexpected control reply %q", line)
	}
	return nil
}
