package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/carelink/backend/internal/config"
	"github.com/golang-jwt/jwt/v4"
)

// LiveKitProvider signs access tokens locally (the provider verifies them
// with the shared API secret) and drives recording egress over the
// provider's HTTP API.
type LiveKitProvider struct {
	cfg    config.SessionConfig
	client *http.Client
}

func NewLiveKitProvider(cfg config.SessionConfig) *LiveKitProvider {
	return &LiveKitProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

type videoGrant struct {
	Room       string `json:"room,omitempty"`
	RoomJoin   bool   `json:"roomJoin,omitempty"`
	RoomRecord bool   `json:"roomRecord,omitempty"`
}

type accessClaims struct {
	jwt.RegisteredClaims
	Name  string     `json:"name,omitempty"`
	Video videoGrant `json:"video"`
}

func (p *LiveKitProvider) AccessToken(room, identity string) (string, error) {
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.cfg.APIKey,
			Subject:   identity,
			NotBefore: jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(p.cfg.TokenTTL)),
		},
		Name:  identity,
		Video: videoGrant{Room: room, RoomJoin: true},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(p.cfg.APISecret))
	if err != nil {
		return "", &ProviderError{Op: "sign access token", Err: err}
	}
	return signed, nil
}

// adminToken authorizes egress calls for one room.
func (p *LiveKitProvider) adminToken(room string) (string, error) {
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.cfg.APIKey,
			Subject:   "recording",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(10 * time.Minute)),
		},
		Video: videoGrant{Room: room, RoomRecord: true},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(p.cfg.APISecret))
}

func (p *LiveKitProvider) StartRoomRecording(ctx context.Context, room, filepath string) (*EgressInfo, error) {
	body := map[string]interface{}{
		"room_name": room,
		"file_outputs": []map[string]interface{}{
			{"file_type": "OGG", "filepath": filepath, "disable_manifest": true},
		},
		"audio_only": true,
	}
	info := &EgressInfo{}
	if err := p.post(ctx, room, "StartRoomCompositeEgress", body, info); err != nil {
		return nil, err
	}
	return info, nil
}

func (p *LiveKitProvider) StopRecording(ctx context.Context, egressID string) (*EgressInfo, error) {
	info := &EgressInfo{}
	if err := p.post(ctx, "", "StopEgress", map[string]interface{}{"egress_id": egressID}, info); err != nil {
		return nil, err
	}
	return info, nil
}

func (p *LiveKitProvider) post(ctx context.Context, room, method string, body, out interface{}) error {
	token, err := p.adminToken(room)
	if err != nil {
		return &ProviderError{Op: method, Err: err}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return &ProviderError{Op: method, Err: err}
	}

	url := fmt.Sprintf("%s/twirp/livekit.Egress/%s", p.cfg.HTTPURL, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &ProviderError{Op: method, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return &ProviderError{Op: method, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &ProviderError{Op: method, Err: fmt.Errorf("status %d: %s", resp.StatusCode, msg)}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &ProviderError{Op: method, Err: err}
		}
	}
	return nil
}
