package provider

import "errors"

// =============================================================================
// Credential Validation (Pure - no I/O)
// =============================================================================

var (
	ErrAWSAccessKeyRequired = errors.New("AWS access key ID is required when a secret access key is set")
	ErrAWSSecretKeyRequired = errors.New("AWS secret access key is required when an access key ID is set")
)

// AWSCredentials represents explicitly configured AWS access keys.
type AWSCredentials struct {
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	SessionToken    string `json:"session_token,omitempty"`
}

// IsEmpty reports whether no keys were configured, meaning the SDK
// default credential chain should be used.
func (c AWSCredentials) IsEmpty() bool {
	return c.AccessKeyID == "" && c.SecretAccessKey == ""
}

// ValidateAWSCredentials checks that keys are either both set or both empty.
func ValidateAWSCredentials(creds AWSCredentials) error {
	if creds.IsEmpty() {
		return nil
	}
	if creds.AccessKeyID == "" {
		return ErrAWSAccessKeyRequired
	}
	if creds.SecretAccessKey == "" {
		return ErrAWSSecretKeyRequired
	}
	return nil
}
