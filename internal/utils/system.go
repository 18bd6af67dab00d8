package utils

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// OpenURL launches a browser on target and returns once it has started.
// $BROWSER takes precedence over the platform opener.
func OpenURL(target string) error {
	name, args := browserCommand(runtime.GOOS, os.Getenv("BROWSER"), target)
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open url: %w", err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

func browserCommand(goos, browser, target string) (string, []string) {
	if browser != "" {
		return browser, []string{target}
	}
	switch goos {
	case "darwin":
		return "open", []string{target}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}
	default:
		return "xdg-open", []string{target}
	}
}
