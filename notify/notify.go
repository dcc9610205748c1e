// Package notify fans alerts out to the channels a paper session has
// configured. Delivery is best effort: a failing channel is logged and
// skipped, never allowed to stall the trading loop.
package notify

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

type Level string

const (
	Info  Level = "info"
	Warn  Level = "warn"
	Error Level = "error"
)

type Alert struct {
	Level   Level
	Title   string
	Message string
	Time    time.Time
}

// Notifier delivers one alert to one channel.
type Notifier interface {
	Name() string
	Send(Alert) error
}

// Console writes alerts to a writer, one line each.
type Console struct {
	Out io.Writer
}

func NewConsole() *Console { return &Console{Out: os.Stdout} }

func (c *Console) Name() string { return "console" }

func (c *Console) Send(a Alert) error {
	_, err := fmt.Fprintf(c.Out, "[%s] %s: %s\n", strings.ToUpper(string(a.Level)), a.Title, a.Message)
	return err
}

// Manager fans a single alert out to every registered channel.
type Manager struct {
	channels []Notifier
	logf     func(format string, v ...any)
}

func NewManager(channels ...Notifier) *Manager {
	return &Manager{channels: channels, logf: log.Printf}
}

func (m *Manager) Register(n Notifier) {
	m.channels = append(m.channels, n)
}

// Dispatch sends the alert to every channel. Failures are logged; the
// alert still reaches the remaining channels.
func (m *Manager) Dispatch(a Alert) {
	for _, ch := range m.channels {
		if err := ch.Send(a); err != nil {
			m.logf("notify: %s channel failed: %v", ch.Name(), err)
		}
	}
}

// ForNames builds a manager from channel names in configuration.
// Unknown names are an error so typos surface at startup.
func ForNames(names []string) (*Manager, error) {
	m := NewManager()
	for _, name := range names {
		switch name {
		case "console":
			m.Register(NewConsole())
		default:
			return nil, fmt.Errorf("notify: unknown channel %q", name)
		}
	}
	return m, nil
}
