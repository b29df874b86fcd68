package types

import "github.com/galxe/blobs3/pkg/access"

// AuthorizeRequest is the body of an authorization dry-run
type AuthorizeRequest struct {
	Address string `json:"address"`
	Access  string `json:"access"`
	Path    string `json:"path"`
}

// AuthorizeResponse reports a decision and the rule that granted it
type AuthorizeResponse struct {
	Authorized bool         `json:"authorized"`
	Rule       *access.Rule `json:"rule,omitempty"`
}

type PutObjectResponse struct {
	Bucket  string `json:"bucket"`
	Key     string `json:"key"`
	Access  string `json:"access"`
	Created bool   `json:"created"`
}

type ErrorResponse struct {
	Status    string `json:"status"`
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
