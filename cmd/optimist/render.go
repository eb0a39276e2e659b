package main

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/daviddao/optimist/pkg/model"
)

var (
	sentColor    = color.New(color.FgGreen)
	sendingColor = color.New(color.FgYellow)
	erroredColor = color.New(color.FgRed, color.Bold)
	dimColor     = color.New(color.Faint)
)

// statusLabel renders an entity's lifecycle position.
func statusLabel(e model.Entity[string]) string {
	switch e.Status {
	case model.StatusSent:
		return sentColor.Sprint("sent")
	case model.StatusSending:
		return sendingColor.Sprint("sending")
	case model.StatusErrored:
		return erroredColor.Sprint("errored")
	default:
		return string(e.Status)
	}
}

// formatEntity renders one outbox line: position, status, id, author, body,
// and the failure reason for errored entities.
func formatEntity(pos int, e model.Entity[string]) string {
	line := fmt.Sprintf("%3d  %-7s  %s  %s: %s",
		pos, statusLabel(e), dimColor.Sprint(e.ID), e.Author.DisplayName, e.Payload)
	if e.IsErrored() {
		line += erroredColor.Sprintf("  (%s)", e.ErrorDetail)
	}
	return line
}

// formatMessage renders a stored message in Lamport order.
func formatMessage(m model.Message) string {
	author := m.AuthorName
	if author == "" {
		author = m.AuthorID
	}
	return fmt.Sprintf("[ts=%d] %s: %s", m.LamportTS, author, m.Body)
}
