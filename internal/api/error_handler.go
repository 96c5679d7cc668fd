package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/taskqueue-gin/internal/types"
)

// kindToStatus 领域错误码到 HTTP 状态码的映射
var kindToStatus = map[types.ErrorKind]int{
	types.KindValidation:             http.StatusBadRequest,
	types.KindInvalidCoverageValue:   http.StatusBadRequest,
	types.KindDependencyNotFound:     http.StatusBadRequest,
	types.KindCyclicDependency:       http.StatusConflict,
	types.KindNotFound:               http.StatusNotFound,
	types.KindInvalidStateTransition: http.StatusConflict,
	types.KindPhaseCriteriaNotMet:    http.StatusConflict,
	types.KindWrongPhase:             http.StatusConflict,
	types.KindNoWorkflowAttached:     http.StatusConflict,
	types.KindExecutionTimeout:       http.StatusInternalServerError,
	types.KindExecutionFailure:       http.StatusInternalServerError,
}

// RespondError 把服务层错误翻译为 HTTP 错误响应
// 领域错误按错误码映射状态码,其余一律 500
func RespondError(c *gin.Context, err error) {
	if domainErr, ok := types.AsDomainError(err); ok {
		status, known := kindToStatus[domainErr.Kind]
		if !known {
			status = http.StatusInternalServerError
		}
		Error(c, status, string(domainErr.Kind), domainErr.Message, domainErr.Details...)
		return
	}
	Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
}
