//go:build !linux

package video

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
)

func findBinary(binary string) (string, error) {
	if binary == "" {
		binary = runtime
	}
	if binPath, err := exec.LookPath(binary); err == nil {
		return binPath, nil
	}

	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}

	name := binary
	if goruntime.GOOS == "windows" {
		name += ".exe"
	}

	// bundled next to the executable
	binPath := filepath.Join(filepath.Dir(exePath), "bin", name)
	if _, err = os.Stat(binPath); err != nil {
		return "", fmt.Errorf("failed to find binary '%s'", binary)
	}

	return binPath, nil
}
