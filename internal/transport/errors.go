package transport

import (
	"fmt"
)

// TransportError reports a failed request/response call. StatusCode is
// zero when the request never reached the server.
type TransportError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
