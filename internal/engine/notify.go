// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"log/slog"
	"sync"
)

// =============================================================================
// NOTIFIER
// =============================================================================

// Notifier surfaces user-facing messages from an invocation. Calls may come
// from several goroutines at once.
type Notifier interface {
	Warn(msg string)
	Error(msg string)
}

// LogNotifier writes notifications to a slog logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) logger() *slog.Logger {
	if n.Logger == nil {
		return slog.Default()
	}
	return n.Logger
}

// Warn logs msg at warn level.
func (n LogNotifier) Warn(msg string) { n.logger().Warn(msg) }

// Error logs msg at error level.
func (n LogNotifier) Error(msg string) { n.logger().Error(msg) }

// Collector records notifications in memory, for hosts that return them
// with a response instead of printing them.
type Collector struct {
	mu       sync.Mutex
	warnings []string
	errors   []string
}

// Warn records a warning.
func (c *Collector) Warn(msg string) {
	c.mu.Lock()
	c.warnings = append(c.warnings, msg)
	c.mu.Unlock()
}

// Error records an error message.
func (c *Collector) Error(msg string) {
	c.mu.Lock()
	c.errors = append(c.errors, msg)
	c.mu.Unlock()
}

// Warnings returns a copy of the recorded warnings.
func (c *Collector) Warnings() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.warnings...)
}

// Errors returns a copy of the recorded error messages.
func (c *Collector) Errors() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.errors...)
}

// multiNotifier fans a message out to several notifiers.
type multiNotifier []Notifier

func (m multiNotifier) Warn(msg string) {
	for _, n := range m {
		n.Warn(msg)
	}
}

func (m multiNotifier) Error(msg string) {
	for _, n := range m {
		n.Error(msg)
	}
}
