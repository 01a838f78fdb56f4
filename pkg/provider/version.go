package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/tinyland-inc/chatsink/pkg/bus"
	"github.com/tinyland-inc/chatsink/pkg/logger"
)

// VersionURL publishes the protocol version current WhatsApp Web clients
// announce.
const VersionURL = "https://raw.githubusercontent.com/WhiskeySockets/Baileys/master/src/Defaults/baileys-version.json"

// DefaultVersion is used when no version is configured and the lookup
// fails.
var DefaultVersion = bus.Version{2, 3000, 1023223821}

type VersionResolver struct {
	client *resty.Client
	url    string
}

func NewVersionResolver(url string) *VersionResolver {
	if url == "" {
		url = VersionURL
	}
	return &VersionResolver{
		client: resty.New().SetTimeout(10 * time.Second),
		url:    url,
	}
}

// Fetch downloads the current version.
func (r *VersionResolver) Fetch(ctx context.Context) (bus.Version, error) {
	resp, err := r.client.R().SetContext(ctx).Get(r.url)
	if err != nil {
		return bus.Version{}, fmt.Errorf("fetching version: %w", err)
	}
	if resp.IsError() {
		return bus.Version{}, fmt.Errorf("fetching version: %s", resp.Status())
	}

	// Served as text/plain, so decode by hand.
	var body struct {
		Version []int `json:"version"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return bus.Version{}, fmt.Errorf("decoding version: %w", err)
	}
	return parseVersion(body.Version)
}

// Resolve returns the configured version when set, otherwise the published
// one, falling back to DefaultVersion.
func (r *VersionResolver) Resolve(ctx context.Context, configured []int) bus.Version {
	if len(configured) > 0 {
		v, err := parseVersion(configured)
		if err == nil {
			return v
		}
		logger.WarnCF("bridge", "Ignoring configured version", map[string]any{"error": err.Error()})
	}

	v, err := r.Fetch(ctx)
	if err != nil {
		logger.WarnCF("bridge", "Version lookup failed; using built-in default", map[string]any{
			"error":   err.Error(),
			"version": DefaultVersion,
		})
		return DefaultVersion
	}
	logger.DebugCF("bridge", "Using published version", map[string]any{"version": v})
	return v
}

func parseVersion(parts []int) (bus.Version, error) {
	if len(parts) != 3 {
		return bus.Version{}, fmt.Errorf("version must have 3 parts, got %d", len(parts))
	}
	return bus.Version{parts[0], parts[1], parts[2]}, nil
}
