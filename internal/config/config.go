package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"plasma-ng/internal/modulator"
	"plasma-ng/internal/pwm"
)

type Config struct {
	Control  ControlConfig   `yaml:"control"`
	HTTP     HTTPConfig      `yaml:"http"`
	MIDI     MIDIConfig      `yaml:"midi"`
	Log      LogConfig       `yaml:"log"`
	Channels []ChannelConfig `yaml:"channels"`
}

type ControlConfig struct {
	// Mode is "osc" or "keyboard".
	Mode      string `yaml:"mode"`
	OSCListen string `yaml:"osc_listen"`
	// ImmediateOn starts every output at startup instead of waiting for a
	// start command.
	ImmediateOn bool `yaml:"immediate_on"`
}

type HTTPConfig struct {
	// Listen enables the status API when set.
	Listen string `yaml:"listen"`
}

type MIDIConfig struct {
	Enable   bool          `yaml:"enable"`
	Port     string        `yaml:"port"`
	Bindings []MIDIBinding `yaml:"bindings"`
}

type MIDIBinding struct {
	Channel    int     `yaml:"channel"`
	Controller int     `yaml:"controller"`
	Address    string  `yaml:"address"`
	Min        float64 `yaml:"min"`
	Max        float64 `yaml:"max"`
}

type LogConfig struct {
	File        string `yaml:"file"`
	BufferLines int    `yaml:"buffer_lines"`
}

type ChannelConfig struct {
	Root        string            `yaml:"root"`
	FineSpread  float64           `yaml:"fine_spread"`
	PWM         PWMConfig         `yaml:"pwm"`
	Interrupter InterrupterConfig `yaml:"interrupter"`
	Modulator   ModulatorConfig   `yaml:"modulator"`
}

type PWMConfig struct {
	Backend   string   `yaml:"backend"`
	Pin       int      `yaml:"pin"`
	Host      string   `yaml:"host"`
	Port      int      `yaml:"port"`
	Frequency float64  `yaml:"frequency"`
	DutyCycle *float64 `yaml:"duty_cycle"`
}

type InterrupterConfig struct {
	Frequency *float64 `yaml:"frequency"`
	DutyCycle *float64 `yaml:"duty_cycle"`
}

type ModulatorConfig struct {
	Frequency  float64  `yaml:"frequency"`
	Amplitude  float64  `yaml:"amplitude"`
	Center     *float64 `yaml:"center"`
	UpdateRate float64  `yaml:"update_rate"`
	Waveform   string   `yaml:"waveform"`
}

const (
	ModeOSC      = "osc"
	ModeKeyboard = "keyboard"

	DefaultOSCListen   = "0.0.0.0:5005"
	DefaultPin         = 18
	DefaultPigpioPort  = 8888
	DefaultBufferLines = 500
	DefaultUpdateRate  = 60.0
)

var backends = []string{pwm.BackendMock, pwm.BackendSysfs, pwm.BackendRPIO, pwm.BackendGPIO, pwm.BackendPigpio, pwm.BackendAuto}

var hardwarePWMPins = map[int]bool{12: true, 13: true, 18: true, 19: true}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse decodes YAML, rejecting unknown keys, then applies defaults and
// validates.
func Parse(b []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func ptr(v float64) *float64 { return &v }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func (cfg *Config) normalize() error {
	c := &cfg.Control
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	if c.Mode == "" {
		c.Mode = ModeOSC
	}
	if c.Mode != ModeOSC && c.Mode != ModeKeyboard {
		return fmt.Errorf("control.mode must be %q or %q", ModeOSC, ModeKeyboard)
	}
	if c.OSCListen == "" {
		c.OSCListen = DefaultOSCListen
	}

	if cfg.Log.BufferLines <= 0 {
		cfg.Log.BufferLines = DefaultBufferLines
	}

	if len(cfg.Channels) == 0 {
		return fmt.Errorf("channels: at least one channel is required")
	}
	roots := make(map[string]int, len(cfg.Channels))
	for i := range cfg.Channels {
		ch := &cfg.Channels[i]
		if err := ch.normalize(i); err != nil {
			return err
		}
		if prev, dup := roots[ch.Root]; dup {
			return fmt.Errorf("channels[%d].root %q duplicates channels[%d].root", i, ch.Root, prev)
		}
		roots[ch.Root] = i
	}

	if cfg.MIDI.Enable && len(cfg.MIDI.Bindings) == 0 {
		return fmt.Errorf("midi.bindings is required when midi.enable is true")
	}
	for i, b := range cfg.MIDI.Bindings {
		switch {
		case b.Channel < 0 || b.Channel > 15:
			return fmt.Errorf("midi.bindings[%d].channel must be in [0,15]", i)
		case b.Controller < 0 || b.Controller > 127:
			return fmt.Errorf("midi.bindings[%d].controller must be in [0,127]", i)
		case b.Address == "":
			return fmt.Errorf("midi.bindings[%d].address is required", i)
		case !finite(b.Min) || !finite(b.Max):
			return fmt.Errorf("midi.bindings[%d].min and max must be finite", i)
		}
	}
	return nil
}

func (ch *ChannelConfig) normalize(i int) error {
	name := fmt.Sprintf("channels[%d]", i)

	ch.Root = strings.Trim(ch.Root, "/")
	if ch.Root == "" {
		ch.Root = fmt.Sprintf("pwm%d", i)
	}
	if !finite(ch.FineSpread) {
		return fmt.Errorf("%s.fine_spread must be finite", name)
	}

	p := &ch.PWM
	p.Backend = strings.ToLower(strings.TrimSpace(p.Backend))
	if p.Backend == "" {
		p.Backend = pwm.BackendAuto
	}
	if !contains(backends, p.Backend) {
		return fmt.Errorf("%s.pwm.backend must be one of %s", name, strings.Join(backends, ", "))
	}
	if p.Pin == 0 {
		p.Pin = DefaultPin
	}
	switch p.Backend {
	case pwm.BackendSysfs, pwm.BackendRPIO, pwm.BackendAuto:
		if !hardwarePWMPins[p.Pin] {
			return fmt.Errorf("%s.pwm.pin must be one of 12, 13, 18, 19 for hardware PWM", name)
		}
	}
	if p.Backend == pwm.BackendPigpio && p.Port == 0 {
		p.Port = DefaultPigpioPort
	}
	if !(p.Frequency > 0) || !finite(p.Frequency) {
		return fmt.Errorf("%s.pwm.frequency is required and must be > 0", name)
	}
	if p.DutyCycle == nil {
		p.DutyCycle = ptr(0.5)
	}
	if d := *p.DutyCycle; !(d >= 0 && d <= 1) {
		return fmt.Errorf("%s.pwm.duty_cycle must be in [0,1]", name)
	}

	in := &ch.Interrupter
	if in.Frequency == nil {
		in.Frequency = ptr(100)
	}
	if f := *in.Frequency; !(f >= 0) || !finite(f) {
		return fmt.Errorf("%s.interrupter.frequency must be >= 0", name)
	}
	if in.DutyCycle == nil {
		// Duty 1 means no interruption.
		in.DutyCycle = ptr(1)
	}
	if d := *in.DutyCycle; !(d >= 0 && d <= 1) {
		return fmt.Errorf("%s.interrupter.duty_cycle must be in [0,1]", name)
	}

	m := &ch.Modulator
	if !(m.Frequency >= 0) || !finite(m.Frequency) {
		return fmt.Errorf("%s.modulator.frequency must be >= 0", name)
	}
	if !(m.Amplitude >= 0) || !finite(m.Amplitude) {
		return fmt.Errorf("%s.modulator.amplitude must be >= 0", name)
	}
	if m.Center == nil {
		m.Center = ptr(p.Frequency)
	}
	if c := *m.Center; !(c >= 0) || !finite(c) {
		return fmt.Errorf("%s.modulator.center must be >= 0", name)
	}
	if m.UpdateRate == 0 {
		m.UpdateRate = DefaultUpdateRate
	}
	if !(m.UpdateRate > 0) || !finite(m.UpdateRate) {
		return fmt.Errorf("%s.modulator.update_rate must be > 0", name)
	}
	m.Waveform = strings.ToLower(strings.TrimSpace(m.Waveform))
	if m.Waveform == "" {
		m.Waveform = "sine"
	}
	if _, err := modulator.ParseWaveform(m.Waveform); err != nil {
		return fmt.Errorf("%s.modulator.waveform must be one of %s", name, strings.Join(modulator.WaveformNames(), ", "))
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
