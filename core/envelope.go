package core

// Envelope is the wire shape every operation resolves to before it
// crosses the transport boundary: transport handlers never propagate a
// Go error, they always produce one of these. Payload carries the
// operation-specific fields (e.g. query_id, rows) on success and is nil
// on failure.
type Envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// Ok builds a successful envelope wrapping payload.
func Ok(payload any) Envelope {
	return Envelope{Success: true, Payload: payload}
}

// Err builds a failed envelope carrying a human-readable reason.
func Err(message string) Envelope {
	return Envelope{Success: false, Error: message}
}

// FromError builds an envelope from a (payload, error) pair: Err(err)
// when err is non-nil, Ok(payload) otherwise. This is the standard
// bridge between a core method's idiomatic Go return and the envelope a
// transport handler emits.
func FromError(payload any, err error) Envelope {
	if err != nil {
		return Err(err.Error())
	}
	return Ok(payload)
}
