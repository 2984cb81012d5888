package sse

import (
	"bufio"
	"io"
	"strings"
)

// sseEvent is one dispatched server-sent event.
type sseEvent struct {
	name string
	data []byte
}

// eventParser incrementally decodes the text/event-stream framing:
// "event:" names the event, "data:" lines accumulate (joined with
// newlines), a blank line dispatches, and comment lines starting with
// ":" are ignored. "id:" and "retry:" fields are accepted and dropped.
type eventParser struct {
	scanner *bufio.Scanner
}

func newEventParser(r io.Reader) *eventParser {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 8<<20)
	return &eventParser{scanner: sc}
}

// next blocks until a complete event with data is available. It returns
// io.EOF when the stream ends.
func (p *eventParser) next() (sseEvent, error) {
	var (
		name      string
		dataLines []string
	)
	for p.scanner.Scan() {
		line := strings.TrimSuffix(p.scanner.Text(), "\r")
		switch {
		case line == "":
			if len(dataLines) > 0 {
				return sseEvent{name: name, data: []byte(strings.Join(dataLines, "\n"))}, nil
			}
			name = ""
		case strings.HasPrefix(line, ":"):
			// comment / keepalive
		default:
			field, value := splitField(line)
			switch field {
			case "event":
				name = value
			case "data":
				dataLines = append(dataLines, value)
			case "id", "retry":
				// unused
			}
		}
	}
	if err := p.scanner.Err(); err != nil {
		return sseEvent{}, err
	}
	// Dispatch a trailing event that was not followed by a blank line.
	if len(dataLines) > 0 {
		p.scanner = bufio.NewScanner(strings.NewReader(""))
		return sseEvent{name: name, data: []byte(strings.Join(dataLines, "\n"))}, nil
	}
	return sseEvent{}, io.EOF
}

func splitField(line string) (field, value string) {
	field, value, found := strings.Cut(line, ":")
	if !found {
		return line, ""
	}
	return field, strings.TrimPrefix(value, " ")
}
