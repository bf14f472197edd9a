package printer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

var ErrNoChrome = errors.New("printer: no chrome binary available")

// A4 in inches
const (
	a4Width  = 8.27
	a4Height = 11.69
)

// Chrome is a lazily started headless browser used to turn print pages into
// PDFs. It is safe for concurrent use; pages are rendered one at a time.
type Chrome struct {
	bin string
	log *zap.Logger

	mu      sync.Mutex
	browser *rod.Browser
}

// NewChrome uses bin, or the first Chrome found on the system when bin is empty.
func NewChrome(bin string, log *zap.Logger) *Chrome {
	if log == nil {
		log = zap.NewNop()
	}
	return &Chrome{bin: bin, log: log}
}

// Available reports whether a browser binary can be found.
func (c *Chrome) Available() bool {
	if c.bin != "" {
		return true
	}
	_, ok := launcher.LookPath()
	return ok
}

func (c *Chrome) ensure(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browser != nil {
		return nil
	}

	bin := c.bin
	if bin == "" {
		found, ok := launcher.LookPath()
		if !ok {
			return ErrNoChrome
		}
		bin = found
	}
	controlURL, err := launcher.New().Bin(bin).Headless(true).Launch()
	if err != nil {
		return fmt.Errorf("launch chrome: %w", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}
	c.browser = browser
	c.log.Info("headless chrome started", zap.String("bin", bin))
	return nil
}

// RenderPDF loads html into a fresh tab and writes the A4 PDF to dst.
func (c *Chrome) RenderPDF(ctx context.Context, html string, dst io.Writer) error {
	if err := c.ensure(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	page, err := c.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return fmt.Errorf("open tab: %w", err)
	}
	defer page.Close()

	if err := page.SetDocumentContent(html); err != nil {
		return fmt.Errorf("load print page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait for layout: %w", err)
	}

	w, h := a4Width, a4Height
	stream, err := page.PDF(&proto.PagePrintToPDF{
		PrintBackground:   true,
		PreferCSSPageSize: true,
		PaperWidth:        &w,
		PaperHeight:       &h,
	})
	if err != nil {
		return fmt.Errorf("print to pdf: %w", err)
	}
	defer stream.Close()
	if _, err := io.Copy(dst, stream); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func (c *Chrome) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browser == nil {
		return nil
	}
	err := c.browser.Close()
	c.browser = nil
	return err
}
