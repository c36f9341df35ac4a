package config

import (
	"os"
	"path/filepath"
)

// defaultClientStateDir is where the terminal client keeps its token.
func defaultClientStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "clinicboard")
	}
	return ".clinicboard"
}
