package notify

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
	"github.com/Finn-coder2026/jolli-demo-sub011/internal/httpclient"
)

// HTTPSink POSTs each notification as JSON to a receiver URL. The tenant is
// repeated in X-Jolli-Tenant and X-Jolli-Org so receivers can route without
// parsing the body.
type HTTPSink struct {
	url    string
	client *httpclient.Client
}

// NewHTTPSink validates target against client's policy
func NewHTTPSink(target string, client *httpclient.Client) (*HTTPSink, error) {
	if _, err := client.Check(target); err != nil {
		err = errors.Wrap(err, "invalid notification URL")
		return nil, errors.WithHint(err, "notify.url must be a public http(s) endpoint")
	}
	return &HTTPSink{url: target, client: client}, nil
}

// Send implements Sink
func (s *HTTPSink) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "failed to marshal notification")
	}
	header := http.Header{}
	header.Set("X-Jolli-Tenant", n.Tenant.TenantID)
	header.Set("X-Jolli-Org", n.Tenant.OrgID)
	header.Set("X-Jolli-Event", n.Event.Type)
	return s.client.PostJSON(ctx, s.url, body, header)
}
