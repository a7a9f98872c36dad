package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/peerchat/internal/common"
)

// Notice is the small {"message": ...} payload used by acknowledgements and
// error responses.
type Notice struct {
	Message string `json:"message"`
}

// ResponseError is a non-OK response. It matches the common sentinel for its
// status through errors.Is.
type ResponseError struct {
	Status  Status
	Message string
}

func (e *ResponseError) Error() string {
	if e.Message == "" {
		return string(e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Status, e.Message)
}

func (e *ResponseError) Unwrap() error {
	switch e.Status {
	case StatusUnauthorized:
		return common.ErrUnauthorized
	case StatusRequestError:
		return common.ErrRequest
	default:
		return common.ErrServer
	}
}

// StatusError maps a response status and its payload to an error. OK maps
// to nil.
func StatusError(status Status, payload json.RawMessage) error {
	if status == StatusOK {
		return nil
	}
	var n Notice
	_ = json.Unmarshal(payload, &n)
	return &ResponseError{Status: status, Message: n.Message}
}

// ResponseErr is StatusError applied to a decoded response frame.
func ResponseErr(f Frame) error {
	return StatusError(f.Status(), f.Payload)
}
