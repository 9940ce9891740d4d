package aws

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

// ErrorKind buckets AWS API failures into the categories the executor
// acts on. Everything else stays ErrorUnknown and is treated as final.
type ErrorKind string

const (
	ErrorTransient           ErrorKind = "transient"
	ErrorPermissionDenied    ErrorKind = "permission_denied"
	ErrorDependencyViolation ErrorKind = "dependency_violation"
	ErrorNotFound            ErrorKind = "not_found"
	ErrorUnsupported         ErrorKind = "unsupported"
	ErrorUnknown             ErrorKind = "unknown"
)

// errUnsupported marks operations the provider cannot perform for a
// resource type, as opposed to operations AWS rejected.
var errUnsupported = errors.New("operation not supported for resource type")

// ClassifyError maps an AWS SDK error to an ErrorKind.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ErrorUnknown
	}

	if errors.Is(err, errUnsupported) {
		return ErrorUnsupported
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTransient
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return ErrorUnknown
	}

	code := apiErr.ErrorCode()

	switch {
	case isNotFoundCode(code):
		return ErrorNotFound
	case isThrottleCode(code) || apiErr.ErrorFault() == smithy.FaultServer:
		return ErrorTransient
	case isAccessDeniedCode(code):
		return ErrorPermissionDenied
	case isDependencyCode(code):
		return ErrorDependencyViolation
	case isUnsupportedCode(code):
		return ErrorUnsupported
	default:
		return ErrorUnknown
	}
}

// IsRetryable reports whether the executor should retry the call.
// Only transient faults qualify; retrying a denied or conflicting call
// just burns the rate limit.
func IsRetryable(err error) bool {
	return ClassifyError(err) == ErrorTransient
}

// IsNotFound reports whether the target no longer exists. A delete that
// races an external cleanup lands here and counts as already satisfied.
func IsNotFound(err error) bool {
	return ClassifyError(err) == ErrorNotFound
}

func isNotFoundCode(code string) bool {
	if strings.Contains(code, "NotFound") {
		return true
	}
	if strings.HasPrefix(code, "NoSuch") {
		return true
	}
	switch code {
	case "ResourceNotFoundException", "ClusterNotFoundException",
		"DBInstanceNotFound", "DBClusterNotFoundFault",
		"LoadBalancerNotFound", "RepositoryNotFoundException",
		"QueueDoesNotExist", "InvalidGroup.NotFound",
		"InvalidVpcID.NotFound", "InvalidInternetGatewayID.NotFound",
		"InvalidAllocationID.NotFound", "NatGatewayNotFound":
		return true
	}
	return false
}

func isThrottleCode(code string) bool {
	switch code {
	case "Throttling", "ThrottlingException", "ThrottledException",
		"TooManyRequestsException", "RequestLimitExceeded",
		"RequestThrottled", "RequestThrottledException",
		"SlowDown", "ServiceUnavailable", "InternalError",
		"InternalFailure", "EC2ThrottledException":
		return true
	}
	return strings.Contains(code, "Throttl")
}

func isAccessDeniedCode(code string) bool {
	switch code {
	case "AccessDenied", "AccessDeniedException", "UnauthorizedOperation",
		"UnauthorizedAccess", "AuthFailure", "Forbidden",
		"NotAuthorized", "MissingAuthenticationToken":
		return true
	}
	return false
}

func isDependencyCode(code string) bool {
	switch code {
	case "DependencyViolation", "ResourceInUse", "ResourceInUseException",
		"DeleteConflict", "InvalidParameterValue.InUse",
		"ClusterContainsServicesException", "ClusterContainsTasksException",
		"ClusterContainsContainerInstancesException",
		"ResourceInUseFault", "InvalidDBInstanceState",
		"InvalidClusterStateFault", "BucketNotEmpty":
		return true
	}
	return false
}

func isUnsupportedCode(code string) bool {
	switch code {
	case "UnsupportedOperation", "InvalidAction", "OperationNotPermitted",
		"MethodNotAllowed", "NotImplemented":
		return true
	}
	return false
}
