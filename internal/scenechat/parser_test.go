package scenechat

import "testing"

func TestParseOutputExtractsReasonAndResponse(t *testing.T) {
	content := "## Reason\nbecause the user asked\n## Response\nhere is your answer\n"
	out := ParseOutput(content)

	if out.Reason != "because the user asked" {
		t.Fatalf("reason = %q", out.Reason)
	}
	if out.Response != "here is your answer" {
		t.Fatalf("response = %q", out.Response)
	}
	if out.UpdatedScenes != nil {
		t.Fatalf("expected no updated scenes, got %v", out.UpdatedScenes)
	}
	if out.MatchConnection != nil {
		t.Fatalf("expected no match connection, got %v", out.MatchConnection)
	}
}

func TestParseOutputToleratesMissingSections(t *testing.T) {
	out := ParseOutput("just plain text with no headers at all")

	if out.Reason != "" || out.Response != "" {
		t.Fatalf("expected empty reason/response, got %+v", out)
	}
}

func TestParseOutputParsesUpdatedScenesFencedJSON(t *testing.T) {
	content := "## Reason\nr\n## Response\nresp\n## Updated Scenes\n" +
		"```json\n[{\"name\":\"intro\",\"state\":\"active\",\"subscenes\":[{\"name\":\"greet\",\"state\":\"active\"}]}]\n```\n"
	out := ParseOutput(content)

	if len(out.UpdatedScenes) != 1 {
		t.Fatalf("expected 1 scene, got %d", len(out.UpdatedScenes))
	}
	if out.UpdatedScenes[0].Name != "intro" || out.UpdatedScenes[0].State != SceneActive {
		t.Fatalf("unexpected scene: %+v", out.UpdatedScenes[0])
	}
	if len(out.UpdatedScenes[0].Subscenes) != 1 || out.UpdatedScenes[0].Subscenes[0].Name != "greet" {
		t.Fatalf("unexpected subscenes: %+v", out.UpdatedScenes[0].Subscenes)
	}
}

func TestParseOutputTreatsNullUpdatedScenesAsAbsent(t *testing.T) {
	content := "## Reason\nr\n## Response\nresp\n## Updated Scenes\n```json\nnull\n```\n"
	out := ParseOutput(content)

	if out.UpdatedScenes != nil {
		t.Fatalf("expected nil scenes for null JSON body, got %v", out.UpdatedScenes)
	}
}

func TestParseOutputIgnoresMalformedUpdatedScenesJSON(t *testing.T) {
	content := "## Reason\nr\n## Response\nresp\n## Updated Scenes\n```json\nnot valid json\n```\n"
	out := ParseOutput(content)

	if out.UpdatedScenes != nil {
		t.Fatalf("expected nil scenes for malformed JSON, got %v", out.UpdatedScenes)
	}
}

func TestParseOutputParsesMatchedConnection(t *testing.T) {
	content := "## Reason\nr\n## Response\nresp\n## Matched Connection\n" +
		"```json\n{\"from\":\"intro\",\"to\":\"checkout\",\"name\":\"proceed\"}\n```\n"
	out := ParseOutput(content)

	if out.MatchConnection == nil {
		t.Fatalf("expected a match connection")
	}
	if out.MatchConnection.From != "intro" || out.MatchConnection.To != "checkout" {
		t.Fatalf("unexpected connection: %+v", out.MatchConnection)
	}
}

func TestParseOutputTreatsEmptyObjectMatchConnectionAsAbsent(t *testing.T) {
	content := "## Reason\nr\n## Response\nresp\n## Matched Connection\n```json\n{}\n```\n"
	out := ParseOutput(content)

	if out.MatchConnection != nil {
		t.Fatalf("expected nil match connection for empty object, got %v", out.MatchConnection)
	}
}

func TestParseOutputToleratesEdSuffixVariants(t *testing.T) {
	content := "## Reason\nr\n## Response\nresp\n## Update Scenes\n" +
		"```json\n[{\"name\":\"a\",\"state\":\"done\",\"subscenes\":[]}]\n```\n" +
		"## Match Connection\n```json\n{\"from\":\"a\",\"to\":\"b\"}\n```\n"
	out := ParseOutput(content)

	if len(out.UpdatedScenes) != 1 {
		t.Fatalf("expected the non-'ed' header variant to still match, got %+v", out.UpdatedScenes)
	}
	if out.MatchConnection == nil {
		t.Fatalf("expected the non-'ed' connection header variant to still match")
	}
}
