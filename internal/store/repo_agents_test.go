package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAgentAndLLMConfigurationRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	llmID, err := repo.CreateLLMConfiguration(ctx, LLMConfiguration{
		Name: "gpt", Model: "gpt-4o-mini", Protocol: "openai_compatible",
		ExtraConfig: map[string]any{"temperature": 0.2},
	})
	require.NoError(t, err)

	gotLLM, err := repo.GetLLMConfiguration(ctx, llmID)
	require.NoError(t, err)
	require.Equal(t, "gpt-4o-mini", gotLLM.Model)
	require.Equal(t, 0.2, gotLLM.ExtraConfig["temperature"])

	agentID, err := repo.CreateAgent(ctx, Agent{Name: "helper", LLMID: llmID, MaxIteration: 10})
	require.NoError(t, err)

	gotAgent, err := repo.GetAgent(ctx, agentID)
	require.NoError(t, err)
	require.Equal(t, "helper", gotAgent.Name)
	require.Equal(t, 10, gotAgent.MaxIteration)

	require.NoError(t, repo.SetAgentTools(ctx, agentID, []string{"add", "multiply"}))
	toolNames, err := repo.ListAgentTools(ctx, agentID)
	require.NoError(t, err)
	require.Equal(t, []string{"add", "multiply"}, toolNames)

	// A later CRUD update replaces the allowlist wholesale.
	require.NoError(t, repo.SetAgentTools(ctx, agentID, []string{"divide"}))
	toolNames, err = repo.ListAgentTools(ctx, agentID)
	require.NoError(t, err)
	require.Equal(t, []string{"divide"}, toolNames)

	agents, err := repo.ListAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 1)
}

func TestGetAgentNotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetAgent(context.Background(), 999)
	require.Error(t, err)
}
