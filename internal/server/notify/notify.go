// Package notify delivers operator alerts. Delivery is push only: callers
// invoke SendAlert and get a result back; nothing polls.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Field is one labelled line of alert context.
type Field struct {
	Label string
	Value string
}

// Alert never carries secret material.
type Alert struct {
	Priority Priority
	Title    string
	Text     string
	Fields   []Field
	// Link points operators at the page where they can act on the alert.
	Link string
}

// Summary renders the alert as plain text.
func (a Alert) Summary() string {
	var b strings.Builder
	if a.Priority == PriorityHigh {
		b.WriteString("[HIGH] ")
	}
	b.WriteString(a.Title)
	if a.Text != "" {
		b.WriteString("\n")
		b.WriteString(a.Text)
	}
	for _, f := range a.Fields {
		fmt.Fprintf(&b, "\n%s: %s", f.Label, f.Value)
	}
	if a.Link != "" {
		b.WriteString("\n")
		b.WriteString(a.Link)
	}
	return b.String()
}

type Notifier interface {
	SendAlert(ctx context.Context, a Alert) error
}

// Nop discards alerts.
type Nop struct{}

func (Nop) SendAlert(context.Context, Alert) error { return nil }

var ErrNoChannel = errors.New("no alert channel configured")

// Unconfigured stands in when no delivery channel is set up. Normal alerts
// are dropped; high-priority alerts fail with ErrNoChannel.
type Unconfigured struct{}

func (Unconfigured) SendAlert(_ context.Context, a Alert) error {
	if a.Priority == PriorityHigh {
		return ErrNoChannel
	}
	return nil
}

// Multi fans an alert out to every notifier. It fails if any of them fails;
// all are attempted regardless.
type Multi []Notifier

func (m Multi) SendAlert(ctx context.Context, a Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.SendAlert(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
