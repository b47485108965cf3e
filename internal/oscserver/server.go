// Package oscserver feeds OSC messages received over UDP into a control
// surface.
package oscserver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net"
	"strconv"
	"strings"

	"github.com/hypebeast/go-osc/osc"
)

// Surface is the command table messages are dispatched to.
type Surface interface {
	Dispatch(id string, args ...float64) (bool, error)
	IDs() []string
}

// Handler adapts a Surface to go-osc's Dispatcher.
type Handler struct {
	surface Surface
	ids     []string
	logger  *log.Logger
}

func NewHandler(surface Surface, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{surface: surface, ids: surface.IDs(), logger: logger}
}

var _ osc.Dispatcher = (*Handler)(nil)

func (h *Handler) Dispatch(packet osc.Packet) {
	switch p := packet.(type) {
	case *osc.Message:
		h.message(p)
	case *osc.Bundle:
		for _, m := range p.Messages {
			h.message(m)
		}
		for _, b := range p.Bundles {
			h.Dispatch(b)
		}
	}
}

func (h *Handler) message(msg *osc.Message) {
	if msg == nil {
		return
	}
	args, err := Args(msg.Arguments)
	if err != nil {
		h.logger.Printf("osc: %s: %v", msg.Address, err)
		return
	}
	ids, err := h.resolve(msg.Address)
	if err != nil {
		h.logger.Printf("osc: dropped: %v", err)
		return
	}
	for _, id := range ids {
		if _, err := h.surface.Dispatch(id, args...); err != nil {
			h.logger.Printf("osc: %v", err)
		}
	}
}

// resolve expands an address pattern into the bound addresses it matches.
// Plain addresses, and patterns matching nothing, are passed through so the
// surface can report them as unknown.
func (h *Handler) resolve(addr string) ([]string, error) {
	if !isPattern(addr) {
		return []string{addr}, nil
	}
	re, err := compilePattern(addr)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, id := range h.ids {
		if re.MatchString(id) {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return []string{addr}, nil
	}
	return out, nil
}

// Args converts OSC arguments to numbers. Booleans become 0 or 1; strings
// are parsed as numbers, and otherwise count as 1 when non-empty.
func Args(in []interface{}) ([]float64, error) {
	out := make([]float64, 0, len(in))
	for i, a := range in {
		switch v := a.(type) {
		case int32:
			out = append(out, float64(v))
		case int64:
			out = append(out, float64(v))
		case float32:
			out = append(out, float64(v))
		case float64:
			out = append(out, v)
		case bool:
			if v {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				out = append(out, f)
			} else if v != "" {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		case nil:
			out = append(out, 0)
		default:
			return nil, fmt.Errorf("argument %d: unsupported type %T", i, a)
		}
	}
	for i, f := range out {
		if math.IsNaN(f) {
			return nil, fmt.Errorf("argument %d: NaN", i)
		}
	}
	return out, nil
}

// Serve receives OSC packets on listenAddr until ctx is cancelled.
func Serve(ctx context.Context, listenAddr string, h *Handler) error {
	conn, err := net.ListenPacket("udp", listenAddr)
	if err != nil {
		return fmt.Errorf("osc listen %s: %w", listenAddr, err)
	}
	return ServeConn(ctx, conn, h)
}

// ServeConn is Serve on an existing connection. It closes conn on return.
func ServeConn(ctx context.Context, conn net.PacketConn, h *Handler) error {
	h.logger.Printf("osc: listening on %s (%d addresses)", conn.LocalAddr(), len(h.ids))
	errCh := make(chan error, 1)
	go func() {
		errCh <- h.readLoop(conn)
	}()

	select {
	case <-ctx.Done():
		_ = conn.Close()
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		_ = conn.Close()
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		return err
	}
}

// readLoop dispatches packets in arrival order. Malformed packets are logged
// and skipped.
func (h *Handler) readLoop(conn net.PacketConn) error {
	buf := make([]byte, 65535)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		p, err := osc.ParsePacket(string(buf[:n]))
		if err != nil {
			h.logger.Printf("osc: bad packet from %s: %v", from, err)
			continue
		}
		h.dispatchPacket(p, from)
	}
}

// dispatchPacket keeps a panic in one packet's handling from ending the loop.
func (h *Handler) dispatchPacket(p osc.Packet, from net.Addr) {
	defer func() {
		if v := recover(); v != nil {
			h.logger.Printf("osc: packet from %s: panic: %v", from, v)
		}
	}()
	h.Dispatch(p)
}
