// Package turn builds the ICE server list handed to browsers, signing
// short-lived TURN credentials with the coturn REST scheme:
//
//	username   = <unix expiry>:<label>
//	credential = base64(hmac-sha1(shared secret, username))
package turn

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

var ErrInvalidLabel = errors.New("credential label must be non-empty and must not contain ':'")

type Config struct {
	StunURLs []string
	TurnURLs []string
	Secret   string
	TTL      time.Duration
	Now      func() time.Time
}

type Provider struct {
	stunURLs []string
	turnURLs []string
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

func NewProvider(cfg Config) (*Provider, error) {
	if len(cfg.TurnURLs) > 0 {
		if cfg.Secret == "" {
			return nil, errors.New("turn secret is required when turn urls are set")
		}
		if cfg.TTL <= 0 {
			return nil, errors.New("turn credential ttl must be positive")
		}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Provider{
		stunURLs: cfg.StunURLs,
		turnURLs: cfg.TurnURLs,
		secret:   []byte(cfg.Secret),
		ttl:      cfg.TTL,
		now:      cfg.Now,
	}, nil
}

type Credentials struct {
	Username   string
	Credential string
	Expiry     time.Time
}

// Generate signs credentials for label, typically a user id.
func (p *Provider) Generate(label string) (Credentials, error) {
	if label == "" || strings.Contains(label, ":") {
		return Credentials{}, ErrInvalidLabel
	}

	expiry := p.now().UTC().Add(p.ttl).Truncate(time.Second)
	username := fmt.Sprintf("%d:%s", expiry.Unix(), label)

	return Credentials{
		Username:   username,
		Credential: sign(p.secret, username),
		Expiry:     expiry,
	}, nil
}

// ICEServers returns the configured servers. TURN entries carry credentials
// for label; an empty label gets a random one. The result is never nil.
func (p *Provider) ICEServers(label string) ([]webrtc.ICEServer, error) {
	servers := []webrtc.ICEServer{}
	if len(p.stunURLs) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: p.stunURLs})
	}

	if len(p.turnURLs) == 0 {
		return servers, nil
	}

	if label == "" {
		label = uuid.NewString()
	}
	creds, err := p.Generate(label)
	if err != nil {
		return nil, err
	}

	servers = append(servers, webrtc.ICEServer{
		URLs:           p.turnURLs,
		Username:       creds.Username,
		Credential:     creds.Credential,
		CredentialType: webrtc.ICECredentialTypePassword,
	})
	return servers, nil
}

func sign(secret []byte, username string) string {
	mac := hmac.New(sha1.New, secret)
	mac.Write([]byte(username))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
