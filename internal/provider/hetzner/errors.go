package hetzner

import (
	"errors"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/adam-stokes/ogc-sub000/internal/provider"
	"github.com/adam-stokes/ogc-sub000/internal/util/retry"
)

// Codes returned by the API without an exported constant.
const (
	errorCodeResourceInUse hcloud.ErrorCode = "resource_in_use"
	errorCodeTokenReadonly hcloud.ErrorCode = "token_readonly"
)

// isResourceLocked reports errors caused by a running action on the
// resource. These are retryable.
func isResourceLocked(err error) bool {
	return isHCloudErrorCode(err,
		hcloud.ErrorCodeLocked,
		hcloud.ErrorCodeConflict,
		hcloud.ErrorCodeResourceUnavailable,
		errorCodeResourceInUse,
	)
}

// isInvalidParameter reports errors that will not go away by retrying.
func isInvalidParameter(err error) bool {
	return isHCloudErrorCode(err,
		hcloud.ErrorCodeInvalidInput,
		hcloud.ErrorCodeInvalidServerType,
		hcloud.ErrorCodeUniquenessError,
		hcloud.ErrorCodeResourceLimitExceeded,
	)
}

func isUnauthorized(err error) bool {
	return isHCloudErrorCode(err, hcloud.ErrorCodeUnauthorized, hcloud.ErrorCodeForbidden, errorCodeTokenReadonly)
}

func isHCloudErrorCode(err error, codes ...hcloud.ErrorCode) bool {
	if err == nil {
		return false
	}
	var hcloudErr hcloud.Error
	if errors.As(err, &hcloudErr) {
		for _, code := range codes {
			if hcloudErr.Code == code {
				return true
			}
		}
	}
	return false
}

// IsNotFound checks if an error indicates a resource was not found.
func IsNotFound(err error) bool {
	return isHCloudErrorCode(err, hcloud.ErrorCodeNotFound)
}

// IsRateLimited checks if an error indicates rate limiting.
func IsRateLimited(err error) bool {
	return isHCloudErrorCode(err, hcloud.ErrorCodeRateLimitExceeded)
}

// classify marks errors the caller must not retry. Rate limits, locks and
// transport failures pass through unchanged.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case isUnauthorized(err):
		return retry.Fatal(&provider.CredentialsError{Provider: Name, Detail: "token rejected", Err: err})
	case isInvalidParameter(err):
		return retry.Fatal(err)
	}
	return err
}
