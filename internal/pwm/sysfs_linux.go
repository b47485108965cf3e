//go:build linux

package pwm

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// sysfsPWM drives a hardware PWM channel via /sys/class/pwm.
//
// Notes:
//   - On Raspberry Pi, `dtoverlay=pwm-2chan` exposes GPIO18 (channel 0) and
//     GPIO19 (channel 1) under /sys/class/pwm. GPIO12/13 share those channels.
//   - This backend is the one that works on Pi 5, where memory-mapped GPIO
//     libraries do not.
type sysfsPWM struct {
	output

	chipPath string // /sys/class/pwm/pwmchipN
	pwmPath  string // /sys/class/pwm/pwmchipN/pwmM
	channel  int

	periodNS uint64
	enabled  bool
}

var pwmSysfsBase = "/sys/class/pwm"

// sysfsChannel maps BCM pins onto the two Pi hardware PWM channels.
func sysfsChannel(pin int) (int, error) {
	switch pin {
	case 12, 18:
		return 0, nil
	case 13, 19:
		return 1, nil
	}
	return 0, fmt.Errorf("pwm: sysfs backend has no hardware channel for gpio %d", pin)
}

func openSysfs(pin int) (Device, error) {
	channel, err := sysfsChannel(pin)
	if err != nil {
		return nil, err
	}
	chipPath, err := findPWMChip(channel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	d := &sysfsPWM{
		chipPath: chipPath,
		channel:  channel,
		pwmPath:  filepath.Join(chipPath, fmt.Sprintf("pwm%d", channel)),
	}
	d.stopped = true
	d.apply = d.sync

	if err := d.ensureExported(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if err := d.writeBool("enable", false); err != nil {
		return nil, fmt.Errorf("%w: disable pwm: %v", ErrDeviceUnavailable, err)
	}
	return d, nil
}

// findPWMChip returns the lowest-numbered pwmchip exposing channel. Entries
// under /sys/class/pwm are usually symlinks, so they are not filtered by type.
func findPWMChip(channel int) (string, error) {
	entries, err := os.ReadDir(pwmSysfsBase)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", pwmSysfsBase, err)
	}
	type chip struct {
		index int
		name  string
	}
	var chips []chip
	for _, e := range entries {
		idx, ok := strings.CutPrefix(e.Name(), "pwmchip")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(idx)
		if err != nil {
			n = math.MaxInt
		}
		chips = append(chips, chip{index: n, name: e.Name()})
	}
	sort.Slice(chips, func(i, j int) bool {
		if chips[i].index != chips[j].index {
			return chips[i].index < chips[j].index
		}
		return chips[i].name < chips[j].name
	})

	for _, c := range chips {
		path := filepath.Join(pwmSysfsBase, c.name)
		if n, err := readInt(filepath.Join(path, "npwm")); err == nil && n > channel {
			return path, nil
		}
	}
	return "", fmt.Errorf("no pwmchip under %s has channel %d; enable the pwm-2chan overlay", pwmSysfsBase, channel)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// exportTimeout bounds the wait for pwmN to appear after writing export.
const exportTimeout = 500 * time.Millisecond

func (d *sysfsPWM) ensureExported() error {
	if exists(d.pwmPath) {
		return nil
	}
	err := writeSysfs(filepath.Join(d.chipPath, "export"), strconv.Itoa(d.channel))
	if err != nil && !exists(d.pwmPath) {
		return fmt.Errorf("export channel %d: %w", d.channel, err)
	}
	for start := time.Now(); !exists(d.pwmPath); time.Sleep(10 * time.Millisecond) {
		if time.Since(start) > exportTimeout {
			return fmt.Errorf("%s did not appear after export", d.pwmPath)
		}
	}
	return nil
}

// sync writes period, duty and enable. Called with d.mu held.
func (d *sysfsPWM) sync(hz, duty float64, on bool) error {
	if !on || hz <= 0 {
		if !d.enabled {
			return nil
		}
		if err := d.writeBool("enable", false); err != nil {
			return err
		}
		d.enabled = false
		return nil
	}

	periodNS := uint64(math.Round(1e9 / hz))
	if periodNS == 0 {
		periodNS = 1
	}
	dutyNS := uint64(math.Round(float64(periodNS) * duty))
	if dutyNS > periodNS {
		dutyNS = periodNS
	}

	if periodNS != d.periodNS {
		// duty_cycle must never exceed period, so zero it before resizing.
		if d.periodNS != 0 {
			if err := d.writeUint("duty_cycle", 0); err != nil {
				return err
			}
		}
		if err := d.writeUint("period", periodNS); err != nil {
			return err
		}
		d.periodNS = periodNS
	}
	if err := d.writeUint("duty_cycle", dutyNS); err != nil {
		return err
	}
	if !d.enabled {
		if err := d.writeBool("enable", true); err != nil {
			return err
		}
		d.enabled = true
	}
	return nil
}

func (d *sysfsPWM) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.enabled = false
	return d.writeBool("enable", false)
}

func (d *sysfsPWM) writeUint(name string, v uint64) error {
	return writeSysfs(filepath.Join(d.pwmPath, name), strconv.FormatUint(v, 10))
}

func (d *sysfsPWM) writeBool(name string, v bool) error {
	if v {
		return writeSysfs(filepath.Join(d.pwmPath, name), "1")
	}
	return writeSysfs(filepath.Join(d.pwmPath, name), "0")
}

// retryWindow bounds how long writeSysfs keeps retrying while udev fixes up
// permissions on a freshly exported channel.
var retryWindow = 2 * time.Second

func writeSysfs(path, value string) error {
	deadline := time.Now().Add(retryWindow)
	for {
		err := writeAttr(path, value)
		if err == nil || !isRetryableSysfsErr(err) || !time.Now().Before(deadline) {
			return err
		}
		time.Sleep(25 * time.Millisecond)
	}
}

// writeAttr opens without O_TRUNC or O_CREATE; some attributes reject them.
func writeAttr(path, value string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	_, werr := f.WriteString(value)
	return errors.Join(werr, f.Close())
}

func isRetryableSysfsErr(err error) bool {
	return errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrNotExist)
}

func readInt(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return 0, fmt.Errorf("%s is empty", path)
	}
	return strconv.Atoi(s)
}
