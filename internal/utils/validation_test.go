package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestValidateResourceID 测试资源 ID 校验
func TestValidateResourceID(t *testing.T) {
	assert.NoError(t, ValidateResourceID("550e8400-e29b-41d4-a716-446655440000"))
	assert.NoError(t, ValidateResourceID("task_01"))
	assert.NoError(t, ValidateResourceID("a"))

	assert.Error(t, ValidateResourceID(""))
	assert.Error(t, ValidateResourceID("has space"))
	assert.Error(t, ValidateResourceID("../etc/passwd"))
	assert.Error(t, ValidateResourceID(strings.Repeat("a", 65)))
}
