package types

// SuccessEnvelope wraps every successful API body under a data key.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the client-facing error shape. Details only appears for
// codes that allow it.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps an APIError the same way data responses are wrapped.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
