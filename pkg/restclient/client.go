// Package restclient is a thin HTTP wrapper used once at startup to fetch
// instrument reference data (price/qty precision) ahead of the first book
// snapshot, so a freshly started process doesn't have to wait on an
// instrument channel push before it can validate checksums.
package restclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"marketfeed/pkg/market"
	"marketfeed/pkg/protocol"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 5 * time.Second

// Client fetches read-only market reference data over REST. It places no
// orders and holds no credentials; the venue's REST trading surface is out
// of scope here.
type Client struct {
	baseURL string
	client  http.Client
}

// New returns a Client pointed at baseURL (e.g. "https://api.exchange.example").
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  http.Client{Timeout: DefaultTimeout},
	}
}

type instrumentsResponse struct {
	Result struct {
		Instruments []protocol.InstrumentPrecision `json:"instruments"`
	} `json:"result"`
}

// Instruments fetches the full instrument list, used to seed precision
// ahead of the WS session's own instrument channel push.
func (c *Client) Instruments(ctx context.Context) ([]protocol.InstrumentPrecision, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/instruments", nil)
	if err != nil {
		return nil, errors.Wrap(err, "restclient: build request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "restclient: instruments request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "restclient: read instruments response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("restclient: instruments returned %d: %s", resp.StatusCode, string(body))
	}

	var decoded instrumentsResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, errors.Wrap(err, "restclient: unmarshal instruments response")
	}

	return decoded.Result.Instruments, nil
}

// PrecisionMap converts a decoded instrument list into the map shape
// pkg/session consumes when seeding precision before Run starts.
func PrecisionMap(instruments []protocol.InstrumentPrecision) map[market.Symbol]market.Precision {
	out := make(map[market.Symbol]market.Precision, len(instruments))
	for _, p := range instruments {
		out[p.Symbol] = market.Precision{
			PriceScale:   p.PriceScale,
			QtyScale:     p.QtyScale,
			MinOrderSize: p.MinOrderSize,
			TickSize:     p.TickSize,
			Status:       p.Status,
		}
	}
	return out
}
