package ayrshare

import (
	"encoding/json"
	"fmt"
	"strings"
)

// apiResponse is the superset of shapes Ayrshare returns for /api/post.
// Success and failure bodies share a top-level status field; failure details
// land in message, error or errors depending on the path that rejected the
// post.
type apiResponse struct {
	Status  string           `json:"status"`
	ID      string           `json:"id"`
	PostIDs []PlatformPostID `json:"postIds"`
	Message string           `json:"message"`
	ErrMsg  flexibleString   `json:"error"`
	Errors  []apiError       `json:"errors"`
}

// apiError is one entry of the errors list. Entries are usually objects with
// a message field but have been observed as bare strings.
type apiError struct {
	Message string
}

func (e *apiError) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.Message = s
		return nil
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	e.Message = obj.Message
	return nil
}

// flexibleString tolerates a field being a string or an arbitrary JSON value.
type flexibleString string

func (f *flexibleString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexibleString(s)
		return nil
	}
	*f = ""
	return nil
}

// parseResponse decodes a response body, returning nil when the body is not
// valid JSON. Callers treat nil as "no structured detail available".
func parseResponse(raw []byte) *apiResponse {
	var resp apiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil
	}
	return &resp
}

// extractFailure turns a failed response into a display-safe reason. Field
// priority mirrors the API's observed behavior:
//
//	non-2xx: message, error, "Request failed (<code>)"
//	2xx without status=success: errors[].message joined, message, "Post failed"
func extractFailure(statusCode int, transportOK bool, resp *apiResponse) string {
	if !transportOK {
		if resp != nil {
			if resp.Message != "" {
				return resp.Message
			}
			if resp.ErrMsg != "" {
				return string(resp.ErrMsg)
			}
		}
		return fmt.Sprintf("Request failed (%d)", statusCode)
	}

	if resp != nil {
		var parts []string
		for _, e := range resp.Errors {
			if e.Message != "" {
				parts = append(parts, e.Message)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, ", ")
		}
		if resp.Message != "" {
			return resp.Message
		}
	}
	return "Post failed"
}
