// Package browser runs the render surface in a real Chrome page driven
// over CDP. The page talks to Go through a runtime binding for outbound
// messages and through Eval for inbound ones, so a Surface is a
// transport.Conn the engine can run against directly.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/pagesync/protocol"
	"github.com/hazyhaar/pagesync/surface"
	"github.com/hazyhaar/pagesync/transport"
)

// BindingName is the CDP binding the page calls for every outbound message.
const BindingName = "__pagesync_binding"

// Config configures Launch.
type Config struct {
	// RemoteURL is the DevTools websocket of an already running Chrome.
	// Empty launches a local headless one.
	RemoteURL string
	// Headful shows the browser window.
	Headful bool
	// Stealth opens the page with go-rod/stealth evasions applied.
	Stealth bool
	// Bootstrap parameterises the surface document. BindingName is forced.
	Bootstrap surface.BootstrapConfig
	// LoadTimeout bounds page setup. Default: 30s.
	LoadTimeout time.Duration
	Logger      *slog.Logger
}

func (c *Config) defaults() {
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	c.Bootstrap.BindingName = BindingName
	c.Bootstrap.SocketURL = ""
}

// Surface is a browser page running surface.js.
type Surface struct {
	logger  *slog.Logger
	browser *rod.Browser
	lnch    *launcher.Launcher
	page    *rod.Page

	inbox   chan protocol.Message
	cancel  context.CancelFunc
	stopped chan struct{}
	once    sync.Once
}

var _ transport.Conn = (*Surface)(nil)

// Launch starts (or connects to) Chrome and loads the surface document.
// The READY message the page sends on boot is the first Inbox value.
func Launch(ctx context.Context, cfg Config) (*Surface, error) {
	cfg.defaults()
	log := cfg.Logger

	doc, err := surface.Bootstrap(cfg.Bootstrap)
	if err != nil {
		return nil, err
	}

	s := &Surface{logger: log, inbox: make(chan protocol.Message), stopped: make(chan struct{})}
	wsURL := cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(!cfg.Headful).Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		s.lnch = l
		log.Info("browser: launched local chrome", "url", wsURL)
	}

	s.browser = rod.New().ControlURL(wsURL)
	if err := s.browser.Connect(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	if cfg.Stealth {
		s.page, err = stealth.Page(s.browser)
	} else {
		s.page, err = s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("browser: create page: %w", err)
	}

	if err := (proto.RuntimeAddBinding{Name: BindingName}).Call(s.page); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("browser: add binding: %w", err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	wait := s.page.Context(listenCtx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != BindingName {
			return
		}
		m, err := protocol.Decode([]byte(e.Payload))
		if err != nil {
			log.Warn("browser: dropping message", "error", err)
			return
		}
		select {
		case s.inbox <- m:
		case <-listenCtx.Done():
		}
	})
	go func() {
		defer close(s.stopped)
		defer close(s.inbox)
		wait()
	}()

	loadCtx, cancelLoad := context.WithTimeout(ctx, cfg.LoadTimeout)
	defer cancelLoad()
	if err := s.page.Context(loadCtx).SetDocumentContent(doc); err != nil {
		s.Close()
		return nil, fmt.Errorf("browser: load surface: %w", err)
	}
	return s, nil
}

// Send delivers m to the page's receive entry point.
func (s *Surface) Send(ctx context.Context, m protocol.Message) error {
	select {
	case <-s.stopped:
		return transport.ErrClosed
	default:
	}
	data, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	if _, err := s.page.Context(ctx).Eval(`(m) => window.__pagesync.receive(m)`, string(data)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("browser: send %s: %w", m.Type, err)
	}
	return nil
}

// Inbox yields messages the page sent.
func (s *Surface) Inbox() <-chan protocol.Message { return s.inbox }

// Snapshot returns the stripped content of one rendered section as the
// page currently holds it.
func (s *Surface) Snapshot(ctx context.Context, sectionID string) (string, error) {
	res, err := s.page.Context(ctx).Eval(`(id) => {
		const c = document.querySelector('[data-section-id="' + CSS.escape(id) + '"]');
		return c ? window.__pagesync.serialize(c) : null;
	}`, sectionID)
	if err != nil {
		return "", fmt.Errorf("browser: snapshot: %w", err)
	}
	if res.Value.Nil() {
		return "", fmt.Errorf("browser: snapshot: %w: %s", ErrNoSection, sectionID)
	}
	return res.Value.Str(), nil
}

// Eval runs js in the page, for scripted interaction.
func (s *Surface) Eval(ctx context.Context, js string, args ...any) error {
	_, err := s.page.Context(ctx).Eval(js, args...)
	return err
}

// ErrNoSection is returned by Snapshot for ids not rendered.
var ErrNoSection = errors.New("browser: section not rendered")

// Close stops the listener and shuts the browser down.
func (s *Surface) Close() error {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
			<-s.stopped
		}
		s.cleanup()
	})
	return nil
}

func (s *Surface) cleanup() {
	if s.page != nil {
		s.page.Close()
	}
	if s.browser != nil {
		s.browser.Close()
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
	}
}
