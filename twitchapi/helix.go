// Package twitchapi contains minimal helpers to interact with Twitch Helix APIs
// for live status, user lookup, archived VODs and clips, using an app access token.
package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/onnwee/streamportal/live"
	"github.com/onnwee/streamportal/telemetry"
)

// DefaultBaseURL is the Helix API root.
const DefaultBaseURL = "https://api.twitch.tv/helix"

const (
	defaultRetryWait = 500 * time.Millisecond
	maxRetryWait     = 5 * time.Second
)

// HelixClient provides the read-only Helix calls the portal needs.
// Each request is retried once: after a 401 with a fresh token, and after a
// 429/5xx once the advertised reset has passed (bounded).
type HelixClient struct {
	AppTokenSource *TokenSource
	ClientID       string
	HTTPClient     *http.Client
	BaseURL        string
	RetryWait      time.Duration
}

// Stream is a live broadcast from /helix/streams.
type Stream struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	UserLogin    string    `json:"user_login"`
	UserName     string    `json:"user_name"`
	GameID       string    `json:"game_id"`
	GameName     string    `json:"game_name"`
	Type         string    `json:"type"`
	Title        string    `json:"title"`
	ViewerCount  int       `json:"viewer_count"`
	StartedAt    time.Time `json:"started_at"`
	ThumbnailURL string    `json:"thumbnail_url"`
	Tags         []string  `json:"tags"`
}

// User is a profile from /helix/users.
type User struct {
	ID              string    `json:"id"`
	Login           string    `json:"login"`
	DisplayName     string    `json:"display_name"`
	BroadcasterType string    `json:"broadcaster_type"`
	Description     string    `json:"description"`
	ProfileImageURL string    `json:"profile_image_url"`
	OfflineImageURL string    `json:"offline_image_url"`
	CreatedAt       time.Time `json:"created_at"`
}

// VideoMeta is an archived broadcast from /helix/videos.
type VideoMeta struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url"`
	ViewCount    int64  `json:"view_count"`
	Duration     string `json:"duration"`
	CreatedAt    string `json:"created_at"`
	PublishedAt  string `json:"published_at"`
}

// Clip is a clip from /helix/clips.
type Clip struct {
	ID              string    `json:"id"`
	URL             string    `json:"url"`
	EmbedURL        string    `json:"embed_url"`
	BroadcasterName string    `json:"broadcaster_name"`
	CreatorName     string    `json:"creator_name"`
	Title           string    `json:"title"`
	ViewCount       int64     `json:"view_count"`
	CreatedAt       time.Time `json:"created_at"`
	ThumbnailURL    string    `json:"thumbnail_url"`
	Duration        float64   `json:"duration"`
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

func (hc *HelixClient) baseURL() string {
	if hc.BaseURL != "" {
		return hc.BaseURL
	}
	return DefaultBaseURL
}

// GetStreams returns the live stream for login; empty when offline.
func (hc *HelixClient) GetStreams(ctx context.Context, login string) ([]Stream, error) {
	if login == "" {
		return nil, fmt.Errorf("login empty: %w", live.ErrConfigurationMissing)
	}
	var body struct {
		Data []Stream `json:"data"`
	}
	if err := hc.get(ctx, "streams", url.Values{"user_login": {login}}, &body); err != nil {
		return nil, err
	}
	return body.Data, nil
}

// GetUser resolves a login name to its profile.
func (hc *HelixClient) GetUser(ctx context.Context, login string) (*User, error) {
	if login == "" {
		return nil, fmt.Errorf("login empty: %w", live.ErrConfigurationMissing)
	}
	var body struct {
		Data []User `json:"data"`
	}
	if err := hc.get(ctx, "users", url.Values{"login": {login}}, &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, fmt.Errorf("user not found: %s", login)
	}
	return &body.Data[0], nil
}

// GetUserID resolves a login name to its user ID.
func (hc *HelixClient) GetUserID(ctx context.Context, login string) (string, error) {
	u, err := hc.GetUser(ctx, login)
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

// ListVideos lists archive videos for a user, newest first. It returns the pagination cursor.
func (hc *HelixClient) ListVideos(ctx context.Context, userID, after string, first int) ([]VideoMeta, string, error) {
	if userID == "" {
		return nil, "", fmt.Errorf("userID empty")
	}
	if first <= 0 {
		first = 20
	}
	q := url.Values{}
	q.Set("user_id", userID)
	q.Set("type", "archive")
	q.Set("first", strconv.Itoa(first))
	if after != "" {
		q.Set("after", after)
	}
	var body struct {
		Data       []VideoMeta `json:"data"`
		Pagination struct {
			Cursor string `json:"cursor"`
		} `json:"pagination"`
	}
	if err := hc.get(ctx, "videos", q, &body); err != nil {
		return nil, "", err
	}
	return body.Data, body.Pagination.Cursor, nil
}

// GetClips lists clips for a broadcaster created since startedAt (zero means any time).
func (hc *HelixClient) GetClips(ctx context.Context, broadcasterID string, startedAt time.Time, first int) ([]Clip, error) {
	if broadcasterID == "" {
		return nil, fmt.Errorf("broadcasterID empty")
	}
	if first <= 0 {
		first = 20
	}
	q := url.Values{}
	q.Set("broadcaster_id", broadcasterID)
	q.Set("first", strconv.Itoa(first))
	if !startedAt.IsZero() {
		q.Set("started_at", startedAt.UTC().Format(time.RFC3339))
	}
	var body struct {
		Data []Clip `json:"data"`
	}
	if err := hc.get(ctx, "clips", q, &body); err != nil {
		return nil, err
	}
	return body.Data, nil
}

func (hc *HelixClient) get(ctx context.Context, endpoint string, q url.Values, out any) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "twitchapi", "helix."+endpoint, telemetry.PlatformAttr(string(live.PlatformTwitch)))
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()
	telemetry.TimeFunc(telemetry.GatewayObserver(string(live.PlatformTwitch), endpoint), func() {
		err = hc.doWithRetry(ctx, endpoint, q, out)
	})
	return err
}

func (hc *HelixClient) doWithRetry(ctx context.Context, endpoint string, q url.Values, out any) error {
	if hc.AppTokenSource == nil {
		return fmt.Errorf("helix %s: no token source: %w", endpoint, live.ErrConfigurationMissing)
	}
	u := hc.baseURL() + "/" + endpoint + "?" + q.Encode()
	for attempt := 0; ; attempt++ {
		tok, err := hc.AppTokenSource.Get(ctx)
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Client-Id", hc.ClientID)
		req.Header.Set("Authorization", "Bearer "+tok)
		resp, err := hc.http().Do(req)
		if err != nil {
			return fmt.Errorf("helix %s: %w: %w", endpoint, live.ErrTransport, err)
		}

		retryable := resp.StatusCode == http.StatusUnauthorized ||
			resp.StatusCode == http.StatusTooManyRequests ||
			resp.StatusCode >= http.StatusInternalServerError
		if retryable && attempt == 0 {
			wait := time.Duration(0)
			if resp.StatusCode == http.StatusUnauthorized {
				hc.AppTokenSource.Invalidate()
			} else {
				wait = hc.retryDelay(resp.Header)
			}
			closeBody(resp)
			slog.Debug("helix: retrying", slog.String("endpoint", endpoint), slog.Int("status", resp.StatusCode), slog.Duration("wait", wait))
			if wait > 0 {
				select {
				case <-ctx.Done():
					return fmt.Errorf("helix %s: %w: %w", endpoint, live.ErrTransport, ctx.Err())
				case <-time.After(wait):
				}
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			closeBody(resp)
			return fmt.Errorf("helix %s: %s: %s: %w", endpoint, resp.Status, string(b), live.ErrTransport)
		}
		err = json.NewDecoder(resp.Body).Decode(out)
		closeBody(resp)
		if err != nil {
			return fmt.Errorf("helix %s: decode: %w", endpoint, err)
		}
		return nil
	}
}

// retryDelay honors Retry-After (seconds) or Ratelimit-Reset (unix seconds), capped.
func (hc *HelixClient) retryDelay(h http.Header) time.Duration {
	wait := hc.RetryWait
	if wait <= 0 {
		wait = defaultRetryWait
	}
	if v := h.Get("Retry-After"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			wait = time.Duration(n) * time.Second
		}
	} else if v := h.Get("Ratelimit-Reset"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			if d := time.Until(time.Unix(n, 0)); d > 0 {
				wait = d
			}
		}
	}
	if wait > maxRetryWait {
		wait = maxRetryWait
	}
	return wait
}

func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	if err := resp.Body.Close(); err != nil {
		slog.Warn("failed to close response body", slog.Any("err", err))
	}
}
