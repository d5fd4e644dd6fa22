package engine

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// Parser turns the engine output stream into events.
//
// The channel returned by Parse is closed when the reader reaches EOF or
// fails. Blank lines and lines with an unknown prefix are skipped.
type Parser interface {
	Parse(reader io.Reader) <-chan Event
}

// DefaultParser implements [Parser] for the Siril pipe protocol.
type DefaultParser struct {
	// BufferSize is the maximum length of a single line in bytes.
	// Defaults to 1MB if not set or <= 0.
	BufferSize int
}

// NewParser creates a [DefaultParser] with default settings.
func NewParser() *DefaultParser {
	return &DefaultParser{BufferSize: 1024 * 1024}
}

// Parse reads lines from reader on a separate goroutine and emits parsed
// events. Scanner errors end parsing and close the channel, the same as EOF.
func (p *DefaultParser) Parse(reader io.Reader) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		bufSize := p.BufferSize
		if bufSize <= 0 {
			bufSize = 1024 * 1024
		}
		scanner := bufio.NewScanner(reader)
		scanner.Buffer(make([]byte, 0, 64*1024), bufSize)

		for scanner.Scan() {
			event, ok := ParseLine(scanner.Text())
			if !ok {
				continue
			}
			events <- event
		}
	}()

	return events
}

// ParseLine parses a single output-pipe line. It returns false for blank
// lines and lines that are not part of the protocol.
func ParseLine(line string) (Event, bool) {
	line = strings.TrimRight(line, "\r\n")
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Event{}, false
	}

	if trimmed == string(EventTypeReady) {
		return Event{Raw: line, Type: EventTypeReady}, true
	}

	kind, body, found := strings.Cut(trimmed, ":")
	if !found {
		return Event{}, false
	}
	body = strings.TrimSpace(body)

	switch EventType(kind) {
	case EventTypeLog:
		return Event{Raw: line, Type: EventTypeLog, Text: body}, true

	case EventTypeStatus:
		state, text, _ := strings.Cut(body, " ")
		return Event{Raw: line, Type: EventTypeStatus, State: state, Text: strings.TrimSpace(text)}, true

	case EventTypeProgress:
		value, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(body, "%")), 64)
		if err != nil {
			value = -1
		}
		return Event{Raw: line, Type: EventTypeProgress, Progress: value}, true
	}

	return Event{}, false
}
