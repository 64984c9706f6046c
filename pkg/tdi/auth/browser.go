package auth

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
)

//go:generate mockgen -source=browser.go -package auth -destination browser_mock_test.go BrowserOpener

// BrowserOpener opens a URL for the user.
type BrowserOpener interface {
	Open(url string) error
}

// SystemBrowser opens URLs with the platform's default handler. When
// Disabled, Open reports ErrBrowserLaunch without starting anything.
type SystemBrowser struct {
	Stdout   io.Writer
	Stderr   io.Writer
	Disabled bool
}

func (b SystemBrowser) Open(url string) error {
	if b.Disabled {
		return fmt.Errorf("%w: browser launch disabled", ErrBrowserLaunch)
	}
	cmd := browserCommand(runtime.GOOS, url)
	cmd.Stdout = b.Stdout
	cmd.Stderr = b.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrBrowserLaunch, err)
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}

func browserCommand(goos, url string) *exec.Cmd {
	switch goos {
	case "darwin":
		return exec.Command("open", url)
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return exec.Command("xdg-open", url)
	}
}
