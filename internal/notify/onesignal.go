package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	onesignal "github.com/OneSignal/onesignal-go-api/v2"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-taskbuddy/internal/observability"
	"github.com/tbourn/go-taskbuddy/internal/services"
)

// DefaultOneSignalURL is the OneSignal REST API root.
const DefaultOneSignalURL = "https://onesignal.com/api/v1"

const (
	pushPriority = 7
	pushTTL      = 3 * 24 * 60 * 60 // seconds
	// Audience used when a message names no external user ids.
	defaultSegment = "Subscribed Users"
)

// appInfoKeys are the app fields AppInfo passes through.
var appInfoKeys = []string{"name", "players", "messageable_players", "created_at"}

// ErrPushNotConfigured is returned by calls made without credentials.
var ErrPushNotConfigured = errors.New("onesignal: app id or api key missing")

// OneSignal sends web push through the OneSignal API client. It implements
// services.PushSender.
type OneSignal struct {
	AppID   string
	APIKey  string
	BaseURL string
	HTTP    *http.Client
}

// NewOneSignal returns a client for the production API.
func NewOneSignal(appID, apiKey string) *OneSignal {
	return &OneSignal{
		AppID:   appID,
		APIKey:  apiKey,
		BaseURL: DefaultOneSignalURL,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Configured reports whether both credentials are present.
func (o *OneSignal) Configured() bool {
	return o != nil && o.AppID != "" && o.APIKey != ""
}

// Send creates one notification. Any non-2xx answer is an error carrying the
// provider's error list.
func (o *OneSignal) Send(ctx context.Context, msg services.PushMessage) error {
	if !o.Configured() {
		return ErrPushNotConfigured
	}
	n := onesignal.NewNotification(o.AppID)
	n.SetContents(onesignal.StringMap{En: onesignal.PtrString(msg.Content)})
	if msg.Heading != "" {
		n.SetHeadings(onesignal.StringMap{En: onesignal.PtrString(msg.Heading)})
	}
	if len(msg.ExternalUserIDs) > 0 {
		n.SetIncludeExternalUserIds(msg.ExternalUserIDs)
	} else {
		n.SetIncludedSegments([]string{defaultSegment})
	}
	if len(msg.Data) > 0 {
		data := make(map[string]interface{}, len(msg.Data))
		for k, v := range msg.Data {
			data[k] = v
		}
		n.SetData(data)
	}
	n.SetPriority(pushPriority)
	n.SetTtl(pushTTL)

	_, resp, err := o.api().DefaultApi.CreateNotification(o.auth(ctx)).Notification(*n).Execute()
	// A 2xx whose body the client cannot decode was still accepted.
	if err != nil && !accepted(resp) {
		err = apiError(resp, err)
	} else {
		err = nil
	}
	observability.ObserveNotification(observability.ChannelPush, err == nil)
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Debug().Strs("external_ids", msg.ExternalUserIDs).Msg("push notification sent")
	return nil
}

// AppInfo returns the app's name, player counts and creation time.
func (o *OneSignal) AppInfo(ctx context.Context) (map[string]any, error) {
	if !o.Configured() {
		return nil, ErrPushNotConfigured
	}
	app, resp, err := o.api().DefaultApi.GetApp(o.auth(ctx), o.AppID).Execute()
	if err != nil {
		return nil, apiError(resp, err)
	}

	data, err := json.Marshal(app)
	if err != nil {
		return nil, fmt.Errorf("onesignal: encode app: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("onesignal: decode app: %w", err)
	}
	out := make(map[string]any, len(appInfoKeys))
	for _, k := range appInfoKeys {
		if v, ok := raw[k]; ok && v != nil {
			out[k] = v
		}
	}
	return out, nil
}

func (o *OneSignal) api() *onesignal.APIClient {
	cfg := onesignal.NewConfiguration()
	base := strings.TrimRight(o.BaseURL, "/")
	if base == "" {
		base = DefaultOneSignalURL
	}
	cfg.Servers = onesignal.ServerConfigurations{{URL: base}}
	if o.HTTP != nil {
		cfg.HTTPClient = o.HTTP
	}
	return onesignal.NewAPIClient(cfg)
}

// auth attaches the key for both app-scoped and account-scoped endpoints.
func (o *OneSignal) auth(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, onesignal.AppAuth, o.APIKey)
	return context.WithValue(ctx, onesignal.UserAuth, o.APIKey)
}

func accepted(resp *http.Response) bool {
	return resp != nil && resp.StatusCode >= 200 && resp.StatusCode <= 299
}

// apiError folds the HTTP status and the provider's "errors" list into err.
func apiError(resp *http.Response, err error) error {
	if resp == nil {
		return fmt.Errorf("onesignal: %w", err)
	}
	var withBody interface{ Body() []byte }
	if errors.As(err, &withBody) {
		var e struct {
			Errors json.RawMessage `json:"errors"`
		}
		if json.Unmarshal(withBody.Body(), &e) == nil && len(e.Errors) > 0 {
			return fmt.Errorf("onesignal: HTTP %d: %s", resp.StatusCode, e.Errors)
		}
	}
	return fmt.Errorf("onesignal: HTTP %d", resp.StatusCode)
}
