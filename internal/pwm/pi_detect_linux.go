//go:build linux

package pwm

import (
	"os"
	"strings"
)

var modelPaths = []string{
	"/sys/firmware/devicetree/base/model",
	"/proc/device-tree/model",
}

func isRaspberryPi5() bool {
	for _, p := range modelPaths {
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		model := strings.TrimSpace(string(b))
		model = strings.Trim(model, "\x00")
		if strings.Contains(model, "Raspberry Pi 5") {
			return true
		}
	}
	return false
}
