package recaptcha

import (
	"errors"
	"sync"
	"time"
)

// State of the verification widget lifecycle.
type State int

const (
	Unloaded State = iota
	ScriptLoading
	ScriptReady
	WidgetRendered
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case ScriptLoading:
		return "script_loading"
	case ScriptReady:
		return "script_ready"
	case WidgetRendered:
		return "widget_rendered"
	default:
		return "unknown"
	}
}

var ErrScriptNotReady = errors.New("recaptcha script not ready")

// Loader fetches the third-party verification script. Called at most once
// per gate lifetime.
type Loader func() error

// Gate manages the verification widget for one checkout session. The script
// loads at most once, the widget renders at most once, and the token held
// here gates the extended-processor submission. The widget handle is the only
// shared external resource in the flow, hence the render-once guard.
type Gate struct {
	mu     sync.Mutex
	state  State
	loader Loader

	widgetID string
	token    string
	expires  time.Time
	tokenTTL time.Duration

	now func() time.Time
}

func NewGate(loader Loader, tokenTTL time.Duration) *Gate {
	return &Gate{
		loader:   loader,
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// EnsureScript loads the external script once. Subsequent calls are no-ops
// regardless of outcome order.
func (g *Gate) EnsureScript() error {
	g.mu.Lock()
	if g.state != Unloaded {
		g.mu.Unlock()
		return nil
	}
	g.state = ScriptLoading
	loader := g.loader
	g.mu.Unlock()

	var err error
	if loader != nil {
		err = loader()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err != nil {
		g.state = Unloaded
		return err
	}
	g.state = ScriptReady
	return nil
}

// RenderWidget renders at most once; re-selecting the extended method while
// a widget exists is a no-op and returns the existing handle.
func (g *Gate) RenderWidget(widgetID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.widgetID != "" {
		return g.widgetID, nil
	}
	if g.state != ScriptReady {
		return "", ErrScriptNotReady
	}
	g.widgetID = widgetID
	g.state = WidgetRendered
	return g.widgetID, nil
}

// SetToken records a completed verification.
func (g *Gate) SetToken(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.token = token
	g.expires = g.now().Add(g.tokenTTL)
}

// Token returns the held verification token, or "" when none is held or the
// held one has expired. Expiry re-blocks submission.
func (g *Gate) Token() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.token == "" {
		return ""
	}
	if g.now().After(g.expires) {
		g.token = ""
		return ""
	}
	return g.token
}

// Reset clears the token AND the widget handle so the shopper can re-verify
// after a failed submission. The loaded script stays loaded.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.token = ""
	g.widgetID = ""
	if g.state == WidgetRendered {
		g.state = ScriptReady
	}
}
