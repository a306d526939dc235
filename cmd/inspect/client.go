package main

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"net/url"
	"strings"

	"github.com/kevmo314/usbip-uvc/internal/admin"
	"github.com/kevmo314/usbip-uvc/pkg/controls"
)

// client reads the admin API of a running virtual-webcam.
type client struct {
	base string
	http *http.Client
}

func newClient(base string) *client {
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &client{base: strings.TrimRight(base, "/"), http: http.DefaultClient}
}

func (c *client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	return c.http.Do(req)
}

func (c *client) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *client) camera(ctx context.Context) (*admin.Camera, error) {
	var cam admin.Camera
	if err := c.getJSON(ctx, "/api/camera", &cam); err != nil {
		return nil, err
	}
	return &cam, nil
}

func (c *client) sessions(ctx context.Context) ([]admin.Session, error) {
	var ss []admin.Session
	return ss, c.getJSON(ctx, "/api/sessions", &ss)
}

func (c *client) controls(ctx context.Context, id string) ([]controls.ControlSnapshot, error) {
	var cs []controls.ControlSnapshot
	return cs, c.getJSON(ctx, "/api/sessions/"+url.PathEscape(id)+"/controls", &cs)
}

// frame returns the latest published frame, or nil if there is none yet.
func (c *client) frame(ctx context.Context) (image.Image, error) {
	resp, err := c.get(ctx, "/api/frame.jpg")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return jpeg.Decode(resp.Body)
	case http.StatusNotFound:
		return nil, nil
	}
	return nil, fmt.Errorf("GET /api/frame.jpg: %s", resp.Status)
}
