package botworker

import "encoding/json"

// Request is the wire envelope pushed onto a listen channel. Kwargs carries
// the command-specific arguments; Args exists for wire compatibility but no
// current command reads positional arguments.
type Request struct {
	Command     Command           `json:"command"`
	Args        []json.RawMessage `json:"args,omitempty"`
	Kwargs      Kwargs            `json:"kwargs,omitempty"`
	ResponseKey string            `json:"response_key"`
}

// Kwargs is the closed union of every command's keyword arguments.
type Kwargs struct {
	ParticipantCode string `json:"participant_code,omitempty"`
	Path            string `json:"path,omitempty"`
	HTML            string `json:"html,omitempty"`
}

// ackResponse acknowledges commands that carry no payload.
type ackResponse struct {
	OK bool `json:"ok"`
}

// requestErrorResponse tells the caller its request was semantically invalid
// given worker state. Distinct from a transport timeout and from a worker
// failure.
type requestErrorResponse struct {
	RequestError string `json:"request_error"`
}

// responseErrorEnvelope reports a failure inside the worker while executing
// a command. Traceback carries the worker-side diagnostic detail.
type responseErrorEnvelope struct {
	ResponseError string `json:"response_error"`
	Traceback     string `json:"traceback"`
}

// response is the caller-side decoding of any response envelope.
type response struct {
	OK            bool           `json:"ok,omitempty"`
	PostData      map[string]any `json:"post_data,omitempty"`
	RequestError  string         `json:"request_error,omitempty"`
	ResponseError string         `json:"response_error,omitempty"`
	Traceback     string         `json:"traceback,omitempty"`
}
