package utils

import (
	"errors"
	"regexp"
)

// 合法的资源 ID: UUID 或短横线分隔的标识符
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ValidateResourceID 校验资源 ID 格式
func ValidateResourceID(id string) error {
	if id == "" {
		return errors.New("ID is required")
	}
	if !idPattern.MatchString(id) {
		return errors.New("ID contains invalid characters or exceeds 64 characters")
	}
	return nil
}
