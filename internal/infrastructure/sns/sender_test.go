package sns

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidNumber(t *testing.T) {
	assert.True(t, ValidNumber("+919876543210"))
	assert.False(t, ValidNumber("9876543210"))
	assert.False(t, ValidNumber("+0123456789"))
	assert.False(t, ValidNumber("+91 98765 43210"))
}
