package control

import (
	"fmt"
	"log"
	"math"
	"strings"
	"sync"

	"plasma-ng/internal/interrupter"
	"plasma-ng/internal/modulator"
	"plasma-ng/internal/pwm"
	"plasma-ng/internal/timing"
)

// Channel is one independently controlled PWM output with its interrupter
// and frequency modulator. The modulator's setter must drive the same PWM
// the interrupter gates.
type Channel struct {
	root   string
	pwm    pwm.PWM
	intr   *interrupter.Interrupter
	mod    *modulator.Modulator
	logger *log.Logger

	// mu serializes changes to the fine-control frequency.
	mu         sync.Mutex
	fineSpread float64
	fineValue  float64
}

// NormalizeRoot strips leading and trailing slashes from an address root.
func NormalizeRoot(root string) string { return strings.Trim(root, "/") }

func NewChannel(root string, intr *interrupter.Interrupter, mod *modulator.Modulator, fineSpread float64, logger *log.Logger) (*Channel, error) {
	root = NormalizeRoot(root)
	if root == "" {
		return nil, fmt.Errorf("control: empty channel root")
	}
	if intr == nil || mod == nil {
		return nil, fmt.Errorf("control: channel %q needs an interrupter and a modulator", root)
	}
	if math.IsNaN(fineSpread) || math.IsInf(fineSpread, 0) {
		return nil, fmt.Errorf("%w: fine spread %v", pwm.ErrInvalidParameter, fineSpread)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Channel{
		root:       root,
		pwm:        intr.PWM(),
		intr:       intr,
		mod:        mod,
		logger:     logger,
		fineSpread: fineSpread,
	}, nil
}

func (c *Channel) Root() string { return c.root }

func (c *Channel) PWM() pwm.PWM { return c.pwm }

func (c *Channel) Interrupter() *interrupter.Interrupter { return c.intr }

func (c *Channel) Modulator() *modulator.Modulator { return c.mod }

// Active reports whether the output is on or being gated.
func (c *Channel) Active() bool { return !c.pwm.IsStopped() || c.intr.Running() }

// Start turns the output on. While the interrupter runs it owns the on/off
// transitions, so Start does nothing.
func (c *Channel) Start() error {
	if c.intr.Running() {
		c.logger.Printf("control: %s: interrupter running, start ignored", c.root)
		return nil
	}
	return c.pwm.Start()
}

// Stop turns everything off: modulator, interrupter, then the output.
func (c *Channel) Stop() error {
	c.mod.Stop()
	c.intr.Stop()
	return c.pwm.Stop()
}

// ToggleOutput stops an active channel and starts an idle one.
func (c *Channel) ToggleOutput() error {
	if c.Active() {
		return c.Stop()
	}
	return c.Start()
}

// SetCenterFrequency sets the centre of both the fine control and the FM,
// and resets the fine value. The PWM follows immediately unless FM is
// running.
func (c *Channel) SetCenterFrequency(hz float64) error {
	if err := pwm.ValidateFrequency(hz); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mod.SetCenter(hz); err != nil {
		return err
	}
	c.fineValue = 0
	if c.mod.Running() {
		return nil
	}
	return c.pwm.SetFrequency(hz)
}

func (c *Channel) CenterFrequency() float64 { return c.mod.Center() }

func (c *Channel) SetFineSpread(hz float64) error {
	if math.IsNaN(hz) || math.IsInf(hz, 0) {
		return fmt.Errorf("%w: fine spread %v", pwm.ErrInvalidParameter, hz)
	}
	c.mod.Stop()
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.applyFine(hz, c.fineValue); err != nil {
		return err
	}
	c.fineSpread = hz
	return nil
}

// SetFineValue offsets the PWM frequency by value*spread around the centre.
// value is clipped to [-1, 1]. FM is stopped.
func (c *Channel) SetFineValue(value float64) error {
	if math.IsNaN(value) {
		return fmt.Errorf("%w: fine value NaN", pwm.ErrInvalidParameter)
	}
	if value > 1 || value < -1 {
		c.logger.Printf("control: %s: fine value %g clipped to [-1,1]", c.root, value)
		value = math.Max(-1, math.Min(1, value))
	}
	c.mod.Stop()
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.applyFine(c.fineSpread, value); err != nil {
		return err
	}
	c.fineValue = value
	return nil
}

func (c *Channel) Fine() (spread, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fineSpread, c.fineValue
}

func (c *Channel) applyFine(spread, value float64) error {
	return c.pwm.SetFrequency(c.mod.Center() + spread*value)
}

func (c *Channel) SetDutyCycle(d float64) error { return c.pwm.SetDutyCycle(d) }

func (c *Channel) StartFM() error {
	c.mod.Start()
	return nil
}

func (c *Channel) StopFM() error {
	c.mod.Stop()
	return nil
}

func (c *Channel) ToggleFM() error {
	if c.mod.Running() {
		return c.StopFM()
	}
	return c.StartFM()
}

func (c *Channel) SetFMSpread(hz float64) error { return c.mod.SetAmplitude(hz) }

// SetFMFrequency also starts FM.
func (c *Channel) SetFMFrequency(hz float64) error {
	if err := c.mod.SetFrequency(hz); err != nil {
		return err
	}
	return c.StartFM()
}

func (c *Channel) SetFMCenter(hz float64) error { return c.mod.SetCenter(hz) }

func (c *Channel) StartInterrupter() error {
	c.intr.Start()
	return nil
}

func (c *Channel) StopInterrupter() error {
	c.intr.Stop()
	return nil
}

func (c *Channel) ToggleInterrupter() error {
	if c.intr.Running() {
		return c.StopInterrupter()
	}
	return c.StartInterrupter()
}

// BindOSC binds the channel's address tree under /<root>/.
func (c *Channel) BindOSC(b *Builder) error {
	p := "/" + c.root + "/"
	bindings := []struct {
		addr string
		op   Operation
	}{
		{"start", Action(c.Start)},
		{"stop", Action(c.Stop)},
		{"toggle", Toggle(c.Start, c.Stop)},
		{"center-frequency", Value(c.SetCenterFrequency)},
		{"fine/spread", Value(c.SetFineSpread)},
		{"fine/value", Value(c.SetFineValue)},
		{"duty-cycle", Value(c.SetDutyCycle)},
		{"fm/start", Action(c.StartFM)},
		{"fm/stop", Action(c.StopFM)},
		{"fm/toggle", Toggle(c.StartFM, c.StopFM)},
		{"fm/spread", Value(c.SetFMSpread)},
		{"fm/frequency", Value(c.SetFMFrequency)},
		{"fm/center", Value(c.SetFMCenter)},
		{"interrupter/start", Action(c.StartInterrupter)},
		{"interrupter/stop", Action(c.StopInterrupter)},
		{"interrupter/toggle", Toggle(c.StartInterrupter, c.StopInterrupter)},
		{"interrupter/frequency", Value(c.intr.SetFrequency)},
		{"interrupter/duty-cycle", Value(c.intr.SetDutyCycle)},
	}
	for _, bnd := range bindings {
		if err := b.Bind(p+bnd.addr, bnd.op); err != nil {
			return err
		}
	}
	return nil
}

// ChannelStatus is a point-in-time view of a channel for the status API.
type ChannelStatus struct {
	Root        string            `json:"root"`
	PWM         PWMStatus         `json:"pwm"`
	Fine        FineStatus        `json:"fine"`
	Interrupter InterrupterStatus `json:"interrupter"`
	Modulator   ModulatorStatus   `json:"modulator"`
}

type PWMStatus struct {
	Frequency float64 `json:"frequency"`
	DutyCycle float64 `json:"duty_cycle"`
	Running   bool    `json:"running"`
}

type FineStatus struct {
	Spread float64 `json:"spread"`
	Value  float64 `json:"value"`
}

type InterrupterStatus struct {
	Frequency float64              `json:"frequency"`
	DutyCycle float64              `json:"duty_cycle"`
	Running   bool                 `json:"running"`
	LastError string               `json:"last_error,omitempty"`
	Timing    timing.StatsSnapshot `json:"timing"`
}

type ModulatorStatus struct {
	Frequency  float64              `json:"frequency"`
	Amplitude  float64              `json:"amplitude"`
	Center     float64              `json:"center"`
	UpdateRate float64              `json:"update_rate"`
	Output     float64              `json:"output"`
	Running    bool                 `json:"running"`
	LastError  string               `json:"last_error,omitempty"`
	Wake       timing.StatsSnapshot `json:"wake"`
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (c *Channel) Status() ChannelStatus {
	spread, value := c.Fine()
	return ChannelStatus{
		Root: c.root,
		PWM: PWMStatus{
			Frequency: c.pwm.Frequency(),
			DutyCycle: c.pwm.DutyCycle(),
			Running:   !c.pwm.IsStopped(),
		},
		Fine: FineStatus{Spread: spread, Value: value},
		Interrupter: InterrupterStatus{
			Frequency: c.intr.Frequency(),
			DutyCycle: c.intr.DutyCycle(),
			Running:   c.intr.Running(),
			LastError: errString(c.intr.LastError()),
			Timing:    c.intr.Stats(),
		},
		Modulator: ModulatorStatus{
			Frequency:  c.mod.Frequency(),
			Amplitude:  c.mod.Amplitude(),
			Center:     c.mod.Center(),
			UpdateRate: c.mod.UpdateRate(),
			Output:     c.mod.Output(),
			Running:    c.mod.Running(),
			LastError:  errString(c.mod.LastError()),
			Wake:       c.mod.Stats(),
		},
	}
}

// BindChannels binds the OSC address trees of all channels. Roots must be
// unique after normalization.
func BindChannels(b *Builder, channels []*Channel) error {
	seen := make(map[string]bool, len(channels))
	for _, c := range channels {
		if seen[c.root] {
			return fmt.Errorf("control: %w: address root %q used twice", ErrDuplicateBinding, c.root)
		}
		seen[c.root] = true
		if err := c.BindOSC(b); err != nil {
			return err
		}
	}
	return nil
}
