// Package browser opens the Git-Captain sign-in page in the user's browser.
package browser

import (
	"fmt"
	"os/exec"
	"runtime"

	log "github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"
)

var linuxBrowsers = []string{"xdg-open", "x-www-browser", "www-browser", "firefox", "chromium", "google-chrome"}

// OpenURL opens url in the default browser, falling back to well-known
// platform commands when the desktop integration is unavailable.
func OpenURL(url string) error {
	log.Infof("opening %s in browser", url)
	errOpen := open.Run(url)
	if errOpen == nil {
		return nil
	}
	log.Debugf("open-golang failed: %v, trying platform-specific commands", errOpen)

	cmd, errCmd := platformCommand(runtime.GOOS, url, exec.LookPath)
	if errCmd != nil {
		return errCmd
	}
	if errStart := cmd.Start(); errStart != nil {
		return fmt.Errorf("failed to start browser command: %w", errStart)
	}
	return nil
}

// platformCommand picks the command that opens url on goos. lookPath reports
// whether a Linux browser binary exists.
func platformCommand(goos, url string, lookPath func(string) (string, error)) (*exec.Cmd, error) {
	switch goos {
	case "darwin":
		return exec.Command("open", url), nil
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url), nil
	case "linux":
		for _, name := range linuxBrowsers {
			if _, errLook := lookPath(name); errLook == nil {
				return exec.Command(name, url), nil
			}
		}
		return nil, fmt.Errorf("no suitable browser found on Linux system")
	}
	return nil, fmt.Errorf("unsupported operating system: %s", goos)
}
