package main

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"rpkica/internal/rpkierr"
)

func TestExitCodeMapsInputErrorsToUsageCode(t *testing.T) {
	err := rpkierr.Wrap(rpkierr.KindInput, "scenario.yaml", errors.New("bad AS range"))
	assert.Equal(t, 2, exitCode(err))
}

func TestExitCodeMapsOtherKindsToOperationalCode(t *testing.T) {
	err := rpkierr.Wrap(rpkierr.KindIO, "repo", errors.New("disk full"))
	assert.Equal(t, 1, exitCode(err))
}

func TestExitCodeDefaultsToOperationalForUntypedErrors(t *testing.T) {
	assert.Equal(t, 1, exitCode(errors.New("plain error")))
}
