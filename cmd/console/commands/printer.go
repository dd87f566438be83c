package commands

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/room4-2/OpenInterpret/audio"
	"github.com/room4-2/OpenInterpret/session"
	"github.com/room4-2/OpenInterpret/transcript"
)

type uiStyles struct {
	heading    lipgloss.Style
	user       lipgloss.Style
	model      lipgloss.Style
	dim        lipgloss.Style
	connected  lipgloss.Style
	connecting lipgloss.Style
	failed     lipgloss.Style
}

var styles = uiStyles{
	heading:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f")),
	user:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#58a6ff")),
	model:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f")),
	dim:        lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681")),
	connected:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0d1117")).Background(lipgloss.Color("#00ff9f")).Padding(0, 1),
	connecting: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0d1117")).Background(lipgloss.Color("#e3b341")).Padding(0, 1),
	failed:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffffff")).Background(lipgloss.Color("#f85149")).Padding(0, 1),
}

const meterWidth = 24

func statusBadge(st session.Status) string {
	lang := st.Language
	if lang == "" {
		lang = "transcribe only"
	}
	switch st.State {
	case session.StateConnected:
		return styles.connected.Render("LIVE") + " " + styles.dim.Render(lang)
	case session.StateConnecting:
		label := "CONNECTING"
		if st.Attempt > 0 {
			label = fmt.Sprintf("RECONNECTING %d/%d", st.Attempt, st.MaxAttempts)
		}
		if st.Error != "" {
			return styles.connecting.Render(label) + " " + styles.dim.Render(st.Error)
		}
		return styles.connecting.Render(label)
	case session.StateError:
		return styles.failed.Render("ERROR") + " " + st.Error
	default:
		return styles.dim.Render("● stopped") + " " + styles.dim.Render(lang)
	}
}

func speaker(role transcript.Role) string {
	if role == transcript.RoleUser {
		return styles.user.Render("you ›")
	}
	return styles.model.Render(" ai ›")
}

func renderTurn(t transcript.Turn) string {
	line := speaker(t.Role) + " " + t.Text
	if t.Image != "" {
		line += " " + styles.dim.Render(fmt.Sprintf("🖼️ image (%d KB)", len(t.Image)/1024))
	}
	return line
}

func renderPartial(role transcript.Role, text string) string {
	return speaker(role) + " " + styles.dim.Render(text+"…")
}

func renderMeter(l audio.Level) string {
	n := int(l.RMS * 4 * meterWidth)
	n = max(0, min(n, meterWidth))
	return styles.dim.Render("mic ") + styles.model.Render(strings.Repeat("█", n)) + styles.dim.Render(strings.Repeat("░", meterWidth-n))
}

// printer renders session events on a terminal. Listener calls only queue
// lines; a single goroutine writes them.
type printer struct {
	out       io.Writer
	showMeter bool
	lines     chan line
	done      chan struct{}

	mu     sync.Mutex
	closed bool
}

type line struct {
	text      string
	transient bool // overwritten by the next line
}

func newPrinter(out io.Writer, showMeter bool) *printer {
	p := &printer{
		out:       out,
		showMeter: showMeter,
		lines:     make(chan line, 256),
		done:      make(chan struct{}),
	}
	go p.loop()
	return p
}

func (p *printer) loop() {
	defer close(p.done)
	pending := false
	for l := range p.lines {
		if pending {
			fmt.Fprint(p.out, "\r\033[K")
		}
		if l.transient {
			fmt.Fprint(p.out, l.text)
		} else {
			fmt.Fprintln(p.out, l.text)
		}
		pending = l.transient
	}
	if pending {
		fmt.Fprintln(p.out)
	}
}

func (p *printer) emit(l line) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.lines <- l:
	default:
		// terminal is behind, drop
	}
}

// Close flushes queued lines. Later events are discarded.
func (p *printer) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.lines)
	}
	p.mu.Unlock()
	<-p.done
}

func (p *printer) StatusChanged(st session.Status) {
	p.emit(line{text: statusBadge(st)})
}

func (p *printer) Partial(role transcript.Role, text string) {
	if text == "" {
		return
	}
	p.emit(line{text: renderPartial(role, text), transient: true})
}

func (p *printer) Turn(t transcript.Turn) {
	p.emit(line{text: renderTurn(t)})
}

func (p *printer) Level(l audio.Level) {
	if p.showMeter {
		p.emit(line{text: renderMeter(l), transient: true})
	}
}
