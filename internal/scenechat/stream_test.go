package scenechat

import "testing"

func collectDeltas(chunks []Chunk, sectionType SectionType) string {
	var out string
	for _, c := range chunks {
		if c.Type == sectionType {
			out += c.Delta
		}
	}
	return out
}

func TestStreamStateEmitsReasonThenResponse(t *testing.T) {
	s := NewStreamState()

	var reason, response string
	for _, c := range s.Feed("## Reason\nbecause reasons\n## Response\nhi there", "") {
		switch c.Type {
		case SectionReason:
			reason += c.Delta
		case SectionResponse:
			response += c.Delta
		}
	}
	final, _ := s.Finish()
	response += collectDeltas(final, SectionResponse)

	if reason != "\nbecause reasons\n" {
		t.Fatalf("reason = %q", reason)
	}
	if response != "\nhi there" {
		t.Fatalf("response = %q", response)
	}
}

func TestStreamStateHoldsBackTrailingHashInDangerZone(t *testing.T) {
	s := NewStreamState()

	// A delta ending in a lone "#" must not be emitted yet -- it might
	// be the start of a header split across two Feed calls. Everything
	// up to that "#" is still safe to flush immediately.
	chunks := s.Feed("## Response\nthe answer is 42 #", "")
	got := collectDeltas(chunks, SectionResponse)
	if got != "\nthe answer is 42 " {
		t.Fatalf("expected content up to the trailing '#' flushed, got: %q", got)
	}

	// The '#' is still inside the last dangerZoneSize bytes of the
	// buffer, so the continuation is held back with it; Finish then
	// flushes the held text as plain response content.
	more := s.Feed(" not a header after all", "")
	got += collectDeltas(more, SectionResponse)
	final, _ := s.Finish()
	got += collectDeltas(final, SectionResponse)
	if got != "\nthe answer is 42 # not a header after all" {
		t.Fatalf("got = %q", got)
	}
}

func TestStreamStateResolvesHeaderSplitAcrossFeedCalls(t *testing.T) {
	s := NewStreamState()

	first := s.Feed("## Reason\nsome reasoning\n#", "")
	reasonSoFar := collectDeltas(first, SectionReason)

	second := s.Feed("# Response\nthe final answer", "")
	reasonSoFar += collectDeltas(second, SectionReason)
	responseSoFar := collectDeltas(second, SectionResponse)

	if reasonSoFar != "\nsome reasoning\n" {
		t.Fatalf("reason = %q", reasonSoFar)
	}
	if responseSoFar != "\nthe final answer" {
		t.Fatalf("response = %q", responseSoFar)
	}
}

func TestStreamStateAttributesPreHeaderContentToPreviousSection(t *testing.T) {
	s := NewStreamState()

	chunks := s.Feed("## Reason\nreasoning text\n## Response\nresponse text", "")
	var reasonChunks, responseChunks []Chunk
	for _, c := range chunks {
		switch c.Type {
		case SectionReason:
			reasonChunks = append(reasonChunks, c)
		case SectionResponse:
			responseChunks = append(responseChunks, c)
		}
	}

	if len(reasonChunks) == 0 {
		t.Fatalf("expected reasoning content attributed before the Response header")
	}
	if len(responseChunks) == 0 {
		t.Fatalf("expected response content attributed after the Response header")
	}
}

func TestStreamStateForwardsNativeReasoningImmediately(t *testing.T) {
	s := NewStreamState()

	chunks := s.Feed("", "thinking hard")
	if len(chunks) != 1 || chunks[0].Type != SectionReasoning || chunks[0].Delta != "thinking hard" {
		t.Fatalf("unexpected chunks: %+v", chunks)
	}
}

func TestStreamStateFinishFlushesBufferAndParsesFinalOutput(t *testing.T) {
	s := NewStreamState()

	s.Feed("## Reason\nr\n## Response\nthe answer\n## Updated Scenes\n", "")
	s.Feed("```json\n[{\"name\":\"a\",\"state\":\"active\",\"subscenes\":[]}]\n```\n", "")

	chunks, output := s.Finish()

	var sawScenes bool
	for _, c := range chunks {
		if c.Type == SectionUpdatedScenes {
			sawScenes = true
			if len(c.UpdatedScenes) != 1 || c.UpdatedScenes[0].Name != "a" {
				t.Fatalf("unexpected scene payload: %+v", c.UpdatedScenes)
			}
		}
		if c.Type == SectionMatchConnection {
			t.Fatalf("did not expect a match_connection chunk: %+v", c)
		}
	}
	if !sawScenes {
		t.Fatalf("expected an updated_scenes chunk from Finish")
	}
	if output.Response != "the answer" {
		t.Fatalf("output.Response = %q", output.Response)
	}
	if len(output.UpdatedScenes) != 1 {
		t.Fatalf("output.UpdatedScenes = %+v", output.UpdatedScenes)
	}
}

func TestStreamStateFinishOmitsAbsentSections(t *testing.T) {
	s := NewStreamState()
	s.Feed("## Reason\nr\n## Response\njust an answer, no scenes or connection", "")

	chunks, output := s.Finish()
	for _, c := range chunks {
		if c.Type == SectionUpdatedScenes || c.Type == SectionMatchConnection {
			t.Fatalf("did not expect scene/connection chunks, got %+v", c)
		}
	}
	if output.UpdatedScenes != nil {
		t.Fatalf("expected nil UpdatedScenes, got %v", output.UpdatedScenes)
	}
	if output.MatchConnection != nil {
		t.Fatalf("expected nil MatchConnection, got %v", output.MatchConnection)
	}
}

func TestStreamStateNeverEmitsInsideParsingSection(t *testing.T) {
	s := NewStreamState()

	chunks := s.Feed("## Reason\nr\n## Response\nresp\n## Updated Scenes\nraw json content that must stay hidden", "")
	for _, c := range chunks {
		if c.Type == SectionParsing {
			t.Fatalf("parsing-section text must never be emitted as a Chunk: %+v", c)
		}
	}
}
