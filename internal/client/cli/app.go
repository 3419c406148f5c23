package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dmitrijs2005/chatline/internal/client/client"
	"github.com/dmitrijs2005/chatline/internal/client/config"
	"github.com/dmitrijs2005/chatline/internal/client/services"
	"github.com/dmitrijs2005/chatline/internal/client/thread"
	"github.com/dmitrijs2005/chatline/internal/logging"
	"github.com/dmitrijs2005/chatline/internal/models"
)

type App struct {
	c      *client.Client
	reader *bufio.Reader
	out    io.Writer

	// outMu serializes command output with messages printed as they arrive.
	outMu sync.Mutex

	mu      sync.Mutex
	found   *models.UserProfile
	media   []services.Media
	printed int
	primed  bool
	epoch   uint64
	unwatch []func()
}

// NewApp opens the configured backends and returns a ready REPL.
func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	c, err := client.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return newApp(c, os.Stdin, os.Stdout), nil
}

func newApp(c *client.Client, in io.Reader, out io.Writer) *App {
	return &App{c: c, reader: bufio.NewReader(in), out: out}
}

// Run blocks in the REPL until the user exits, then closes the client.
func (a *App) Run(ctx context.Context) error {
	a.println(titleStyle.Render("chatline") + " (type 'help' for commands)")
	if id := a.c.Session.Current(); id != nil {
		a.printf("Signed in as %s\n", id.Email)
	}

	a.watch()
	defer a.stopWatching()

	runREPL(ctx, a, a.getStatus, a.reader)
	return a.c.Close()
}

func (a *App) isLoggedIn() bool {
	return a.c.Session.Current() != nil
}

func (a *App) getStatus() string {
	p := a.c.Profiles.Current()
	if p == nil {
		return ""
	}
	s := " (" + p.Username
	st := a.c.Selector.State()
	if st.Counterpart != nil {
		s += " → " + st.Counterpart.Username
		if st.Blocked() {
			s += " [blocked]"
		}
	}
	return s + ")"
}

// watch prints messages of the open conversation as they arrive.
func (a *App) watch() {
	unsub := a.c.Thread.OnUpdate(a.onThreadUpdate)
	a.mu.Lock()
	a.unwatch = append(a.unwatch, unsub)
	a.mu.Unlock()
}

func (a *App) stopWatching() {
	a.mu.Lock()
	fns := a.unwatch
	a.unwatch = nil
	a.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (a *App) onThreadUpdate(u thread.Update) {
	a.mu.Lock()
	if u.Epoch != a.epoch {
		a.epoch = u.Epoch
		a.primed = false
		a.printed = 0
	}
	if u.Messages == nil {
		// switch marker; the first snapshot follows
		a.mu.Unlock()
		return
	}
	if !a.primed {
		// history is shown on demand by "show"
		a.primed = true
		a.printed = len(u.Messages)
		a.mu.Unlock()
		if n := len(u.Messages); n > 0 {
			a.printf("%d messages, type 'show' to read them\n", n)
		}
		return
	}
	if len(u.Messages) < a.printed {
		a.printed = len(u.Messages)
	}
	fresh := u.Messages[a.printed:]
	a.printed = len(u.Messages)
	a.mu.Unlock()

	self := a.c.Profiles.Current()
	other := a.c.Selector.State().Counterpart
	for _, m := range fresh {
		a.println(renderMessage(m, self, other))
	}
}

func (a *App) println(args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintln(a.out, args...)
}

func (a *App) printf(format string, args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintf(a.out, format, args...)
}
