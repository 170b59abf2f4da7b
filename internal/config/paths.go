package config

import (
	"os"
	"path/filepath"
	"strings"
)

// LogsDir resolves paths.logs against the executable directory, falling
// back to "logs" beside the binary.
func (c *AppConfig) LogsDir() string {
	return resolveRuntimePath(c.Paths.Logs, "logs")
}

func executableDir() string {
	exe, err := os.Executable()
	if err == nil && strings.TrimSpace(exe) != "" {
		if resolved, resolveErr := filepath.EvalSymlinks(exe); resolveErr == nil {
			exe = resolved
		}
		return filepath.Dir(exe)
	}
	if wd, wdErr := os.Getwd(); wdErr == nil {
		return wd
	}
	return "."
}

func resolveRuntimePath(raw, fallback string) string {
	target := strings.TrimSpace(raw)
	if target == "" {
		target = fallback
	}
	if filepath.IsAbs(target) {
		return filepath.Clean(target)
	}
	return filepath.Join(executableDir(), target)
}
