// Command plasma-send sends OSC messages to a plasma-ng daemon, either a
// single message or a periodic triangle sweep of one value.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/hypebeast/go-osc/osc"

	"plasma-ng/internal/udp"
)

const defaultPort = "5005"

type packetSender interface {
	SendPacket(p interface{ MarshalBinary() ([]byte, error) }) error
}

func main() {
	var (
		host     string
		sweep    bool
		minV     float64
		maxV     float64
		period   time.Duration
		interval time.Duration
	)
	flag.StringVar(&host, "host", "127.0.0.1:"+defaultPort, "ip[:port] of the OSC server")
	flag.BoolVar(&sweep, "sweep", false, "Sweep a value between -min and -max instead of sending once")
	flag.Float64Var(&minV, "min", 0.2, "Sweep minimum")
	flag.Float64Var(&maxV, "max", 12, "Sweep maximum")
	flag.DurationVar(&period, "period", 10*time.Second, "Sweep period")
	flag.DurationVar(&interval, "interval", 30*time.Millisecond, "Time between sweep messages")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] address [values...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	sender, err := udp.NewSender(withDefaultPort(host))
	if err != nil {
		log.Fatalf("udp sender init failed: %v", err)
	}
	defer sender.Close()

	if !sweep {
		if flag.NArg() < 1 {
			flag.Usage()
			os.Exit(2)
		}
		msg := buildMessage(flag.Arg(0), flag.Args()[1:])
		if err := sender.SendPacket(msg); err != nil {
			log.Fatalf("send %s: %v", msg.Address, err)
		}
		return
	}

	addr := "/pwm*/fm/frequency"
	if flag.NArg() > 0 {
		addr = flag.Arg(0)
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	log.Printf("sweeping %s in [%g,%g] period=%s to %s", addr, minV, maxV, period, sender.Dest())
	if err := runSweep(ctx, sender, addr, minV, maxV, period, interval); err != nil && ctx.Err() == nil {
		log.Fatalf("sweep: %v", err)
	}
}

// withDefaultPort appends the default OSC port when host has none.
func withDefaultPort(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, defaultPort)
}

// parseArg types a command-line value: int, then float, else string.
func parseArg(s string) interface{} {
	if i, err := strconv.ParseInt(s, 10, 32); err == nil {
		return int32(i)
	}
	if f, err := strconv.ParseFloat(s, 32); err == nil {
		return float32(f)
	}
	return s
}

func buildMessage(addr string, values []string) *osc.Message {
	msg := osc.NewMessage(addr)
	for _, v := range values {
		msg.Append(parseArg(v))
	}
	return msg
}

// sweepValue is a triangle wave starting at lo, reaching hi at half period.
func sweepValue(elapsed, period time.Duration, lo, hi float64) float64 {
	if period <= 0 {
		return lo
	}
	frac := float64(elapsed%period) / float64(period)
	if frac > 0.5 {
		frac = 1 - frac
	}
	return lo + (hi-lo)*2*frac
}

func runSweep(ctx context.Context, s packetSender, addr string, lo, hi float64, period, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be > 0")
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	start := time.Now()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		v := sweepValue(time.Since(start), period, lo, hi)
		if err := s.SendPacket(osc.NewMessage(addr, float32(v))); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}
