package api

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codeready-toolchain/tarsy/internal/config"
)

func TestValidateWiringReportsEveryMissingDependency(t *testing.T) {
	s := &Server{}
	err := s.ValidateWiring()
	if assert.Error(t, err) {
		msg := err.Error()
		assert.Contains(t, msg, "repo is required")
		assert.Contains(t, msg, "engine is required")
		assert.Contains(t, msg, "session service is required")
		assert.Contains(t, msg, "tool registry is required")
		assert.Contains(t, msg, "tool executor is required")
		assert.Contains(t, msg, "metrics is required")
		assert.Contains(t, msg, "SECRET_KEY")
	}
}

func TestValidateWiringStopsReportingSecretKeyOnceSet(t *testing.T) {
	s := &Server{cfg: config.Config{SecretKey: "shh"}}
	err := s.ValidateWiring()
	if assert.Error(t, err) {
		assert.NotContains(t, err.Error(), "SECRET_KEY")
	}
}
