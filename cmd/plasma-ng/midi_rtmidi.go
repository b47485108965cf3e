//go:build rtmidi

package main

// Registers the cgo rtmidi driver (needs ALSA or CoreMIDI headers).
import _ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
