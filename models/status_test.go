// models/status_test.go
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusUploading, StatusProcessing, true},
		{StatusUploading, StatusFailed, true},
		{StatusUploading, StatusReady, false},
		{StatusProcessing, StatusReady, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusUploading, false},
		{StatusFailed, StatusProcessing, true}, // resubmit
		{StatusFailed, StatusReady, false},
		{StatusReady, StatusProcessing, false},
		{StatusReady, StatusFailed, false},
	}

	for _, tc := range cases {
		t.Run(string(tc.from)+"_"+string(tc.to), func(t *testing.T) {
			v := &Video{Status: tc.from}
			err := v.Transition(tc.to)
			if tc.allowed {
				assert.NoError(t, err)
				assert.Equal(t, tc.to, v.Status)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, tc.from, v.Status, "xato o'tishda status o'zgarmasligi kerak")
			}
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusReady.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusUploading.Terminal())
	assert.False(t, StatusProcessing.Terminal())
}

func TestVisibilityPublishable(t *testing.T) {
	assert.True(t, VisibilityPublic.Publishable())
	assert.True(t, VisibilityUnlisted.Publishable())
	assert.False(t, VisibilityPrivate.Publishable())
}

func TestVisibilityValid(t *testing.T) {
	assert.True(t, VisibilityPublic.Valid())
	assert.False(t, Visibility("friends-only").Valid())
}
