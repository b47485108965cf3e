package pwm

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"net"
	"strconv"
	"time"
)

// pigpio socket protocol: requests and responses are four little-endian
// uint32 words (cmd, p1, p2, p3); p3 carries the extension length on
// requests and the signed result on responses.
const (
	pigpioCmdHP       = 86 // hardware_PWM(gpio, frequency, duty)
	pigpioDutyRange   = 1_000_000
	pigpioDefaultPort = 8888
)

var pigpioTimeout = 3 * time.Second

var dialPigpio = func(addr string) (net.Conn, error) {
	return net.DialTimeout("tcp", addr, pigpioTimeout)
}

// pigpioPWM drives hardware PWM through a local or remote pigpio daemon.
// A stopped output is sent as frequency 0.
type pigpioPWM struct {
	output

	addr string
	conn net.Conn
	gpio uint32
}

func openPigpio(host string, port, pin int) (Device, error) {
	if pin <= 0 {
		return nil, fmt.Errorf("%w: gpio pin %d", ErrInvalidParameter, pin)
	}
	if host == "" {
		host = "localhost"
	}
	if port <= 0 {
		port = pigpioDefaultPort
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := dialPigpio(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to connect to pigpiod %s: %v", ErrDeviceUnavailable, addr, err)
	}

	d := &pigpioPWM{addr: addr, conn: conn, gpio: uint32(pin)}
	d.stopped = true
	d.apply = d.sync
	if err := d.sync(0, 0, false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: pigpiod %s: %v", ErrDeviceUnavailable, addr, err)
	}
	return d, nil
}

func (d *pigpioPWM) sync(hz, duty float64, on bool) error {
	freq := uint32(0)
	if on {
		freq = uint32(math.Round(hz))
	}
	ext := make([]byte, 4)
	binary.LittleEndian.PutUint32(ext, uint32(math.Round(duty*pigpioDutyRange)))
	_, err := d.command(pigpioCmdHP, d.gpio, freq, ext)
	return err
}

func (d *pigpioPWM) command(cmd, p1, p2 uint32, ext []byte) (int32, error) {
	if d.conn == nil {
		return 0, fmt.Errorf("pwm: pigpio connection closed")
	}
	req := make([]byte, 16, 16+len(ext))
	binary.LittleEndian.PutUint32(req[0:], cmd)
	binary.LittleEndian.PutUint32(req[4:], p1)
	binary.LittleEndian.PutUint32(req[8:], p2)
	binary.LittleEndian.PutUint32(req[12:], uint32(len(ext)))
	req = append(req, ext...)

	_ = d.conn.SetDeadline(time.Now().Add(pigpioTimeout))
	if _, err := d.conn.Write(req); err != nil {
		return 0, fmt.Errorf("pigpio write: %w", err)
	}
	var resp [16]byte
	if _, err := io.ReadFull(d.conn, resp[:]); err != nil {
		return 0, fmt.Errorf("pigpio read: %w", err)
	}
	res := int32(binary.LittleEndian.Uint32(resp[12:]))
	if res < 0 {
		return res, fmt.Errorf("pigpio cmd %d failed: error %d", cmd, res)
	}
	return res, nil
}

func (d *pigpioPWM) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	_ = d.sync(0, d.duty, false)
	d.stopped = true
	err := d.conn.Close()
	d.conn = nil
	return err
}
