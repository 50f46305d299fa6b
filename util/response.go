package util

import (
	libconstants "github.com/filswan/go-swan-lib/constants"
)

type BasicResponse struct {
	Status  string      `json:"status"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

func CreateSuccessResponse(_data interface{}) BasicResponse {
	return BasicResponse{
		Status: libconstants.SWAN_API_STATUS_SUCCESS,
		Data:   _data,
		Code:   SuccessCode,
	}
}

func CreateErrorResponse(code int, errMsg ...string) BasicResponse {
	var msg string
	if len(errMsg) == 0 {
		msg = codeMsg[code]
	} else {
		msg = errMsg[0]
	}
	return BasicResponse{
		Status:  libconstants.SWAN_API_STATUS_FAIL,
		Code:    code,
		Message: msg,
	}
}

const (
	SuccessCode = 200
	JsonError   = 400

	ExperimentParamError    = 7001
	DeployTaskError         = 7002
	ExperimentNotFoundError = 7003
	CancelJobError          = 7004
)

var codeMsg = map[int]string{
	JsonError: "An error occurred while converting to json",

	ExperimentParamError:    "The experiment definition is invalid",
	DeployTaskError:         "An error occurred while queueing the deployment task",
	ExperimentNotFoundError: "The experiment was not found",
	CancelJobError:          "The job cancel request was rejected",
}
