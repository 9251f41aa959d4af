package session

import (
	"context"
	"errors"
	"fmt"
)

// ProviderError wraps any failure talking to the video session provider.
// The engine surfaces these as-is and never retries; retry policy belongs to
// the caller.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("session provider: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsProviderError reports whether err originated at the provider boundary.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// EgressInfo describes one recording egress as reported by the provider.
// StartedAt is epoch nanoseconds on the wire.
type EgressInfo struct {
	EgressID  string `json:"egressId"`
	RoomName  string `json:"roomName"`
	Status    string `json:"status"`
	StartedAt int64  `json:"startedAt"`
	FileName  string `json:"fileName"`
}

// Provider is the narrow surface the engine needs from the video session
// service: participant token signing and recording egress control.
type Provider interface {
	// AccessToken signs a short-lived join credential scoped to one room and
	// one participant identity.
	AccessToken(room, identity string) (string, error)

	// StartRoomRecording begins a room composite egress writing to filepath.
	StartRoomRecording(ctx context.Context, room, filepath string) (*EgressInfo, error)

	// StopRecording stops a running egress by id.
	StopRecording(ctx context.Context, egressID string) (*EgressInfo, error)
}
