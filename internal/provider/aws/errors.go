package aws

import (
	"errors"

	"github.com/aws/smithy-go"

	"github.com/adam-stokes/ogc-sub000/internal/provider"
	"github.com/adam-stokes/ogc-sub000/internal/util/retry"
)

var credentialCodes = map[string]bool{
	"AuthFailure":                true,
	"UnauthorizedOperation":      true,
	"MissingAuthenticationToken": true,
	"InvalidClientTokenId":       true,
	"SignatureDoesNotMatch":      true,
	"ExpiredToken":               true,
	"OptInRequired":              true,
}

var invalidCodes = map[string]bool{
	"InvalidParameterValue":            true,
	"InvalidParameterCombination":      true,
	"InvalidAMIID.Malformed":           true,
	"InvalidAMIID.NotFound":            true,
	"InvalidKeyPair.Format":            true,
	"InvalidInstanceType":              true,
	"Unsupported":                      true,
	"VcpuLimitExceeded":                true,
	"InstanceLimitExceeded":            true,
	"InvalidPermission.Malformed":      true,
	"InvalidSubnetID.NotFound":         true,
	"InvalidSecurityGroupID.Malformed": true,
}

// errorCode returns the API error code of err, or "".
func errorCode(err error) string {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return ae.ErrorCode()
	}
	return ""
}

func hasCode(err error, codes ...string) bool {
	code := errorCode(err)
	if code == "" {
		return false
	}
	for _, c := range codes {
		if code == c {
			return true
		}
	}
	return false
}

// classify marks errors the caller must not retry. Throttling and
// service errors pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	code := errorCode(err)
	switch {
	case credentialCodes[code]:
		return retry.Fatal(&provider.CredentialsError{Provider: Name, Detail: code, Err: err})
	case invalidCodes[code]:
		return retry.Fatal(err)
	}
	return err
}
