//go:build linux

package video

import (
	"errors"
	"fmt"
	"os/exec"
)

func findBinary(binary string) (string, error) {
	if binary == "" {
		binary = runtime
	}

	binPath, err := exec.LookPath(binary)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("video: `%s` not found in PATH: %w", binary, err)
		}
		return "", fmt.Errorf("video: failed to locate binary: %w", err)
	}

	return binPath, nil
}
