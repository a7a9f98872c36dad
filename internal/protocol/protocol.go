package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/peerchat/internal/common"
	"github.com/google/uuid"
)

// Command is the header of a request frame.
type Command string

const (
	CommandList      Command = "LIST"
	CommandHost      Command = "HOST"
	CommandMessage   Command = "MESSAGE"
	CommandConnect   Command = "CONNECT"
	CommandView      Command = "VIEW"
	CommandDebug     Command = "DEBUG"
	CommandAuthorize Command = "AUTHORIZE"
	CommandInvisible Command = "INVISIBLE"
	CommandRetInfo   Command = "RET_INFO"
	CommandSignIn    Command = "SIGNIN"
	CommandSignUp    Command = "SIGNUP"
	CommandGuest     Command = "GUEST"
	CommandCache     Command = "CACHE"
)

// Status is the header of a response frame.
type Status string

const (
	StatusOK           Status = "OK"
	StatusRequestError Status = "REQUEST_ERROR"
	StatusServerError  Status = "SERVER_ERROR"
	StatusUnauthorized Status = "UNAUTHORIZED"
)

const (
	Terminator = '\n'
	Separator  = '-'
)

// ErrIncompleteFrame means the buffer holds no terminator yet; read more.
var ErrIncompleteFrame = errors.New("incomplete frame")

// IsResponseHeader reports whether header names a response status.
func IsResponseHeader(header string) bool {
	switch Status(header) {
	case StatusOK, StatusRequestError, StatusServerError, StatusUnauthorized:
		return true
	}
	return false
}

// needsID reports whether requests with this command are correlated.
func needsID(c Command) bool {
	return c != CommandList && c != CommandDebug
}

// NewRequestID returns a fresh correlation id.
func NewRequestID() string {
	return uuid.NewString()
}

type envelope struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// Frame is one decoded wire frame.
type Frame struct {
	Header  string
	ID      string
	Payload json.RawMessage
}

func (f Frame) IsResponse() bool { return IsResponseHeader(f.Header) }
func (f Frame) Command() Command { return Command(f.Header) }
func (f Frame) Status() Status   { return Status(f.Header) }

// Bind unmarshals the payload into v. An absent payload leaves v untouched.
func (f Frame) Bind(v any) error {
	if len(f.Payload) == 0 || bytes.Equal(f.Payload, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(f.Payload, v); err != nil {
		return &FrameError{Err: fmt.Errorf("bad %s payload: %w", f.Header, err)}
	}
	return nil
}

// FrameError reports a malformed frame. It matches common.ErrProtocol.
type FrameError struct {
	Line []byte
	Err  error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("malformed frame: %v", e.Err)
}

func (e *FrameError) Unwrap() []error {
	return []error{common.ErrProtocol, e.Err}
}

func encode(header string, id string, payload any) ([]byte, error) {
	var raw json.RawMessage
	switch p := payload.(type) {
	case nil:
		raw = json.RawMessage("{}")
	case json.RawMessage:
		raw = p
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", header, err)
		}
		raw = b
	}

	body, err := json.Marshal(envelope{ID: id, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", header, err)
	}

	frame := make([]byte, 0, len(header)+len(body)+2)
	frame = append(frame, header...)
	frame = append(frame, Separator)
	frame = append(frame, body...)
	frame = append(frame, Terminator)
	return frame, nil
}

// EncodeRequest builds a request frame. When id is empty and the command is
// correlated, a new id is generated. The id actually used is returned.
func EncodeRequest(command Command, payload any, id string) ([]byte, string, error) {
	if id == "" && needsID(command) {
		id = NewRequestID()
	}
	frame, err := encode(string(command), id, payload)
	if err != nil {
		return nil, "", err
	}
	return frame, id, nil
}

// EncodePush builds an uncorrelated frame a host sends on its own initiative,
// such as a MESSAGE broadcast. Its id is always empty.
func EncodePush(command Command, payload any) ([]byte, error) {
	return encode(string(command), "", payload)
}

// EncodeResponse builds a response frame for the request with the given id.
func EncodeResponse(id string, status Status, payload any) ([]byte, error) {
	return encode(string(status), id, payload)
}

// Decode splits one frame off the front of buf.
//
// If buf holds no terminator, it returns ErrIncompleteFrame and buf unchanged.
// Otherwise the frame is consumed even when malformed; the returned remainder
// starts right after its terminator.
func Decode(buf []byte) (Frame, []byte, error) {
	end := bytes.IndexByte(buf, Terminator)
	if end < 0 {
		return Frame{}, buf, ErrIncompleteFrame
	}
	line, rest := buf[:end], buf[end+1:]
	line = bytes.TrimSuffix(line, []byte{'\r'})

	sep := bytes.IndexByte(line, Separator)
	if sep <= 0 {
		return Frame{}, rest, &FrameError{Line: bytes.Clone(line), Err: errors.New("missing header separator")}
	}

	var env envelope
	if err := json.Unmarshal(line[sep+1:], &env); err != nil {
		return Frame{}, rest, &FrameError{Line: bytes.Clone(line), Err: err}
	}

	return Frame{Header: string(line[:sep]), ID: env.ID, Payload: env.Payload}, rest, nil
}
