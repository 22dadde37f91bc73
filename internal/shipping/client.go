package shipping

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

var baseURLs = map[string]string{
	"yalidine": "https://api.yalidine.app/v1/",
	"guepex":   "https://api.guepex.app/v1/",
}

type Options struct {
	Provider string
	APIID    string
	APIToken string
	// BaseURL overrides the provider default.
	BaseURL string
	Timeout time.Duration
}

// Client talks to the Yalidine family of carrier APIs. Yalidine and Guepex
// share one contract and differ only in host.
type Client struct {
	provider string
	http     *resty.Client
}

func NewClient(o Options) (*Client, error) {
	base := o.BaseURL
	if base == "" {
		var ok bool
		if base, ok = baseURLs[o.Provider]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, o.Provider)
		}
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	h := resty.New().
		SetBaseURL(base).
		SetTimeout(o.Timeout).
		SetHeader("X-API-ID", o.APIID).
		SetHeader("X-API-TOKEN", o.APIToken).
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// parcel creation is not idempotent
			if r == nil || r.Request == nil || r.Request.Method != resty.MethodGet {
				return false
			}
			return err != nil || r.StatusCode() >= 500
		})
	return &Client{provider: o.Provider, http: h}, nil
}

func (c *Client) Provider() string { return c.provider }

type page[T any] struct {
	HasMore   bool `json:"has_more"`
	TotalData int  `json:"total_data"`
	Data      []T  `json:"data"`
}

func (c *Client) Wilayas(ctx context.Context) ([]Wilaya, error) {
	return list[Wilaya](ctx, c, "wilayas/", nil)
}

func (c *Client) Communes(ctx context.Context, wilayaID int) ([]Commune, error) {
	return list[Commune](ctx, c, "communes/", map[string]string{"wilaya_id": strconv.Itoa(wilayaID)})
}

func (c *Client) Centers(ctx context.Context, wilayaID int) ([]Center, error) {
	return list[Center](ctx, c, "centers/", map[string]string{"wilaya_id": strconv.Itoa(wilayaID)})
}

func (c *Client) Fees(ctx context.Context, fromWilaya, toWilaya int) (Fees, error) {
	var out Fees
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("from_wilaya_id", strconv.Itoa(fromWilaya)).
		SetQueryParam("to_wilaya_id", strconv.Itoa(toWilaya)).
		SetResult(&out).
		Get("fees/")
	if err := check(resp, err, "fees"); err != nil {
		return Fees{}, err
	}
	return out, nil
}

// CreateParcel submits one parcel. The API answers with a map keyed by our
// order id.
func (c *Client) CreateParcel(ctx context.Context, p Parcel) (ParcelResult, error) {
	var out map[string]ParcelResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody([]Parcel{p}).
		SetResult(&out).
		Post("parcels/")
	if err := check(resp, err, "create parcel"); err != nil {
		return ParcelResult{}, err
	}
	res, ok := out[p.OrderID]
	if !ok || !res.Success || res.Tracking == "" {
		msg := res.Message
		if msg == "" {
			msg = "parcel rejected"
		}
		return ParcelResult{}, fmt.Errorf("%w: %s", ErrProvider, msg)
	}
	return res, nil
}

func (c *Client) Parcel(ctx context.Context, tracking string) (ParcelStatus, error) {
	var out page[ParcelStatus]
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("tracking", tracking).
		SetResult(&out).
		Get("parcels/{tracking}")
	if err := check(resp, err, "parcel"); err != nil {
		return ParcelStatus{}, err
	}
	if len(out.Data) == 0 {
		return ParcelStatus{}, fmt.Errorf("%w: parcel %s not found", ErrProvider, tracking)
	}
	return out.Data[0], nil
}

// list follows has_more pagination.
func list[T any](ctx context.Context, c *Client, path string, params map[string]string) ([]T, error) {
	var all []T
	for pageNo := 1; ; pageNo++ {
		var out page[T]
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(params).
			SetQueryParam("page", strconv.Itoa(pageNo)).
			SetResult(&out).
			Get(path)
		if err := check(resp, err, path); err != nil {
			return nil, err
		}
		all = append(all, out.Data...)
		if !out.HasMore || len(out.Data) == 0 || pageNo >= 50 {
			return all, nil
		}
	}
}

func check(resp *resty.Response, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrProvider, op, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: %s: status %d", ErrProvider, op, resp.StatusCode())
	}
	return nil
}
