package utils

import "github.com/tickbot-robotics/tickbot/logging"

// LogHardwareError logs a failed device request and reports whether there was one. Callers keep
// ticking either way.
func LogHardwareError(logger logging.Logger, device string, err error) bool {
	if err == nil {
		return false
	}
	logger.Warnw("hardware request failed", "device", device, "error", err)
	return true
}
