package scenechat

import (
	"regexp"
	"strings"
)

// headerRE matches a markdown section header, tolerant of the "ed"
// suffix variants the LLM sometimes emits ("Update Scenes" vs
// "Updated Scenes", "Match Connection" vs "Matched Connection").
var headerRE = regexp.MustCompile(`(?i)##\s*(Reason|Response|Update(?:d)? Scenes|Match(?:ed)? Connection)`)

// dangerZoneSize is the fixed lookahead window that protects against
// splitting a header across two stream chunks: from the first "#"
// inside the last 50 bytes of the buffer onward, nothing is emitted
// until later input either completes a header or pushes that "#" out
// of the window; Finish flushes whatever is still held (runtime.py's
// chat_stream danger-zone logic).
const dangerZoneSize = 50

// StreamState holds the mutable state of one chat_stream invocation:
// the accumulated full content (for the final fenced-JSON parse) and
// the pending, not-yet-emitted buffer tail.
type StreamState struct {
	fullContent    string
	buffer         string
	currentSection SectionType
}

func NewStreamState() *StreamState {
	return &StreamState{currentSection: SectionReason}
}

// Feed processes one incremental delta from the LLM stream (plus any
// native reasoning_content, forwarded as-is), returning zero or more
// chunks ready to send to the client. Mirrors runtime.py's
// chat_stream inner loop: header detection first (possibly more than
// one header per delta), then danger-zone holdback on what remains.
func (s *StreamState) Feed(delta, reasoning string) []Chunk {
	var out []Chunk
	if reasoning != "" {
		out = append(out, Chunk{Type: SectionReasoning, Delta: reasoning})
	}
	if delta == "" {
		return out
	}

	s.fullContent += delta
	s.buffer += delta

	for {
		loc := headerRE.FindStringSubmatchIndex(s.buffer)
		if loc == nil {
			break
		}
		headerType := strings.ToLower(s.buffer[loc[2]:loc[3]])
		preHeader := s.buffer[:loc[0]]

		if preHeader != "" && s.currentSection != SectionParsing {
			out = append(out, Chunk{Type: s.currentSection, Delta: preHeader})
		}

		switch {
		case strings.Contains(headerType, "reason"):
			s.currentSection = SectionReason
		case strings.Contains(headerType, "response"):
			s.currentSection = SectionResponse
		default:
			s.currentSection = SectionParsing
		}

		s.buffer = s.buffer[loc[1]:]
	}

	safeLen := len(s.buffer) - dangerZoneSize
	if safeLen < 0 {
		safeLen = 0
	}
	dangerZone := s.buffer[safeLen:]
	if idx := strings.Index(dangerZone, "#"); idx != -1 {
		splitIdx := safeLen + idx
		toYield := s.buffer[:splitIdx]
		s.buffer = s.buffer[splitIdx:]
		if toYield != "" && s.currentSection != SectionParsing {
			out = append(out, Chunk{Type: s.currentSection, Delta: toYield})
		}
	} else {
		if s.buffer != "" && s.currentSection != SectionParsing {
			out = append(out, Chunk{Type: s.currentSection, Delta: s.buffer})
		}
		s.buffer = ""
	}

	return out
}

// Finish flushes any still-buffered content and parses the fully
// accumulated content into scene/connection updates (the tail of
// runtime.py's chat_stream, after its streaming loop ends).
func (s *StreamState) Finish() ([]Chunk, OutputMessage) {
	var out []Chunk
	if s.buffer != "" && s.currentSection != SectionParsing {
		out = append(out, Chunk{Type: s.currentSection, Delta: s.buffer})
	}
	s.buffer = ""

	output := ParseOutput(s.fullContent)
	if len(output.UpdatedScenes) > 0 {
		out = append(out, Chunk{Type: SectionUpdatedScenes, UpdatedScenes: output.UpdatedScenes})
	}
	if output.MatchConnection != nil {
		out = append(out, Chunk{Type: SectionMatchConnection, MatchedConnection: output.MatchConnection})
	}
	return out, output
}
