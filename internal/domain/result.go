package domain

// AuthResult is the outcome of a credential operation. Operations never return
// a Go error; every failure is folded into Success=false with a displayable Error.
type AuthResult struct {
	Success                bool      `json:"success"`
	Error                  string    `json:"error,omitempty"`
	Kind                   ErrorKind `json:"kind,omitempty"`
	NeedsConfirmation      bool      `json:"needsConfirmation,omitempty"`
	NeedsEmailConfirmation bool      `json:"needsEmailConfirmation,omitempty"`
	// ProfilePending is set when sign-up succeeded but the profile write did not.
	ProfilePending bool `json:"profilePending,omitempty"`
}

func Succeeded() AuthResult {
	return AuthResult{Success: true}
}

func Failed(kind ErrorKind, message string) AuthResult {
	return AuthResult{Success: false, Kind: kind, Error: message}
}
