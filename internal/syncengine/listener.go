package syncengine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	wsproto "productive-cloud/internal/websocket"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrListenRejected means the server refused the websocket handshake.
var ErrListenRejected = errors.New("websocket handshake rejected")

type ListenConfig struct {
	// URL is the websocket endpoint, see WebSocketURL.
	URL       string
	Token     string
	DeviceID  string
	Reconnect time.Duration
	Dialer    *websocket.Dialer
}

// WebSocketURL derives the /ws endpoint from an API base URL such as
// http://host:5000/api.
func WebSocketURL(apiBase string) (string, error) {
	u, err := url.Parse(apiBase)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	u.Path = strings.TrimSuffix(strings.TrimRight(u.Path, "/"), "/api") + "/ws"
	u.RawQuery = ""
	return u.String(), nil
}

// Listen subscribes to change notifications and pulls updates whenever
// another device touches a dataset. It reconnects until ctx is done.
func (e *Engine) Listen(ctx context.Context, cfg ListenConfig) error {
	if cfg.Reconnect <= 0 {
		cfg.Reconnect = 5 * time.Second
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return fmt.Errorf("parse websocket url: %w", err)
	}
	q := u.Query()
	q.Set("token", cfg.Token)
	if cfg.DeviceID != "" {
		q.Set("device_id", cfg.DeviceID)
	}
	u.RawQuery = q.Encode()
	target := u.String()

	for {
		err := e.listenOnce(ctx, dialer, target)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrListenRejected) {
			return err
		}
		e.logger.Warn("websocket disconnected, reconnecting", zap.Error(err), zap.Duration("delay", cfg.Reconnect))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(cfg.Reconnect):
		}
	}
}

func (e *Engine) listenOnce(ctx context.Context, dialer *websocket.Dialer, target string) error {
	conn, resp, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return fmt.Errorf("%w: %s", ErrListenRejected, resp.Status)
		}
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-stop:
		}
	}()

	e.logger.Info("listening for remote changes")

	for {
		var msg wsproto.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		switch msg.Type {
		case wsproto.TypeDatasetUpdate, wsproto.TypeDatasetDelete:
			var p wsproto.DatasetUpdatePayload
			if err := msg.UnmarshalPayload(&p); err != nil {
				e.logger.Debug("malformed notification", zap.Error(err))
				continue
			}
			e.logger.Debug("remote change announced", zap.String("data_type", p.DataType), zap.Int64("version", p.Version))
			if _, err := e.CheckForUpdates(ctx); err != nil {
				e.logger.Warn("pull after notification failed", zap.Error(err))
			}
		case wsproto.TypeError:
			var p wsproto.ErrorPayload
			msg.UnmarshalPayload(&p)
			e.logger.Warn("server reported websocket error", zap.String("error", p.Error))
		}
	}
}
