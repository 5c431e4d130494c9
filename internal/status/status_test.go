package status_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lacquerai/blockrt/internal/status"
)

func TestIsError(t *testing.T) {
	errorTags := []status.Tag{
		status.ConfigError, status.InputError, status.BadLink, status.ProcErr, status.ProcessError,
	}
	for _, tag := range errorTags {
		assert.True(t, tag.IsError(), "%s should be an error tag", tag)
	}

	nonErrorTags := []status.Tag{status.Disabled, status.Normal, status.Created, status.Initialed}
	for _, tag := range nonErrorTags {
		assert.False(t, tag.IsError(), "%s should not be an error tag", tag)
	}
}
