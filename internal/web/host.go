package web

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const thermalZonePath = "/sys/class/thermal/thermal_zone0/temp"

var readCPUTempFn = func() (float64, error) { return readCPUTempC(thermalZonePath) }

// HostStatus reports the controller board's health. The CPU temperature is
// omitted where the thermal zone is not readable.
type HostStatus struct {
	CPUTempC *float64 `json:"cpu_temp_c,omitempty"`
	Error    string   `json:"error,omitempty"`
}

func hostStatus() HostStatus {
	c, err := readCPUTempFn()
	if err != nil {
		return HostStatus{Error: err.Error()}
	}
	return HostStatus{CPUTempC: &c}
}

// parseCPUTempC accepts millidegrees (the usual sysfs form) or whole degrees.
func parseCPUTempC(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("cpu temp empty")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parse cpu temp %q: %w", s, err)
	}
	if n > 1000 {
		return float64(n) / 1000, nil
	}
	return float64(n), nil
}

func readCPUTempC(path string) (float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read cpu temp: %w", err)
	}
	return parseCPUTempC(string(b))
}
