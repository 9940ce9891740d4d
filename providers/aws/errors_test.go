package aws

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
)

func apiError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: "test"}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ErrorUnknown},
		{"plain error", errors.New("boom"), ErrorUnknown},
		{"throttling", apiError("ThrottlingException"), ErrorTransient},
		{"request limit", apiError("RequestLimitExceeded"), ErrorTransient},
		{"slow down", apiError("SlowDown"), ErrorTransient},
		{"deadline", context.DeadlineExceeded, ErrorTransient},
		{"access denied", apiError("AccessDenied"), ErrorPermissionDenied},
		{"unauthorized", apiError("UnauthorizedOperation"), ErrorPermissionDenied},
		{"dependency violation", apiError("DependencyViolation"), ErrorDependencyViolation},
		{"bucket not empty", apiError("BucketNotEmpty"), ErrorDependencyViolation},
		{"resource in use", apiError("ResourceInUseException"), ErrorDependencyViolation},
		{"not found suffix", apiError("DBInstanceNotFound"), ErrorNotFound},
		{"no such bucket", apiError("NoSuchBucket"), ErrorNotFound},
		{"ec2 not found", apiError("InvalidGroup.NotFound"), ErrorNotFound},
		{"queue gone", apiError("QueueDoesNotExist"), ErrorNotFound},
		{"unsupported op", apiError("UnsupportedOperation"), ErrorUnsupported},
		{"unsupported sentinel", fmt.Errorf("%w: budgets/budget", errUnsupported), ErrorUnsupported},
		{"unknown code", apiError("SomethingElse"), ErrorUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyWrappedError(t *testing.T) {
	err := fmt.Errorf("failed to delete bucket: %w", apiError("NoSuchBucket"))
	if !IsNotFound(err) {
		t.Error("wrapped NotFound error should classify as not found")
	}
	if IsRetryable(err) {
		t.Error("NotFound is terminal, not retryable")
	}
}

func TestIsRetryableServerFault(t *testing.T) {
	err := &smithy.GenericAPIError{Code: "InternalWeirdness", Fault: smithy.FaultServer}
	if !IsRetryable(err) {
		t.Error("server faults should be retryable")
	}
}
