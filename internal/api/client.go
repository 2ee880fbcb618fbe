package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/banshee-data/seamprofile/internal/httputil"
	"github.com/banshee-data/seamprofile/internal/profiledb"
	"github.com/banshee-data/seamprofile/internal/profilestore"
	"github.com/banshee-data/seamprofile/internal/seam"
	"github.com/banshee-data/seamprofile/internal/version"
)

// Client talks to a running server's /api routes.
type Client struct {
	base string
	hc   httputil.HTTPClient
}

// NewClient returns a client for the server at base, for example
// "http://127.0.0.1:8090". A nil hc uses http.DefaultClient.
func NewClient(base string, hc httputil.HTTPClient) *Client {
	if hc == nil {
		hc = httputil.NewStandardClient(nil)
	}
	return &Client{base: strings.TrimRight(base, "/") + "/api", hc: hc}
}

func (c *Client) url(path string, q url.Values) string {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func idQuery(id int32) url.Values {
	return url.Values{"id": {strconv.FormatInt(int64(id), 10)}}
}

// Current fetches the current profile.
func (c *Client) Current(ctx context.Context) (*seam.Document, error) {
	var doc seam.Document
	if err := httputil.DoJSON(ctx, c.hc, http.MethodGet, c.url("/profiles/current", nil), nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Fill replaces the contents of the current profile with doc.
func (c *Client) Fill(ctx context.Context, doc seam.Document) (*seam.Document, error) {
	var out seam.Document
	if err := httputil.DoJSON(ctx, c.hc, http.MethodPut, c.url("/profiles/current", nil), doc, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List fetches the short listing of the enabled profiles.
func (c *Client) List(ctx context.Context) (*profilestore.MetaOnlyBundle, error) {
	var out profilestore.MetaOnlyBundle
	q := url.Values{"meta_only": {"true"}}
	if err := httputil.DoJSON(ctx, c.hc, http.MethodGet, c.url("/profiles", q), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Load asks the server to read id from its storage, and to make it
// current when andSwitch is set.
func (c *Client) Load(ctx context.Context, id int32, andSwitch bool) (*SwitchResponse, error) {
	q := idQuery(id)
	if andSwitch {
		q.Set("switch", "true")
	}
	var out SwitchResponse
	if err := httputil.DoJSON(ctx, c.hc, http.MethodPost, c.url("/profiles/load", q), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Switch makes the loaded profile id current.
func (c *Client) Switch(ctx context.Context, id int32) (*SwitchResponse, error) {
	var out SwitchResponse
	if err := httputil.DoJSON(ctx, c.hc, http.MethodPost, c.url("/profiles/switch", idQuery(id)), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Save asks the server to persist id.
func (c *Client) Save(ctx context.Context, id int32) error {
	return httputil.DoJSON(ctx, c.hc, http.MethodPost, c.url("/profiles/save", idQuery(id)), nil, nil)
}

// Revisions lists the stored revisions of id.
func (c *Client) Revisions(ctx context.Context, id int32) ([]profiledb.Revision, error) {
	var out []profiledb.Revision
	if err := httputil.DoJSON(ctx, c.hc, http.MethodGet, c.url("/profiles/revisions", idQuery(id)), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Version fetches the server's build identity.
func (c *Client) Version(ctx context.Context) (version.Info, error) {
	var out version.Info
	err := httputil.DoJSON(ctx, c.hc, http.MethodGet, c.url("/version", nil), nil, &out)
	return out, err
}
