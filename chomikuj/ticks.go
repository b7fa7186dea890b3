package chomikuj

import (
	"bytes"
	"context"
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/patrickmn/go-cache"
	"golang.org/x/net/html"
)

// TickSource hands out the ticks value that authorises folder tree
// listings for a user.
type TickSource interface {
	// Ticks returns the ticks for username, fetching them again if
	// force is set or nothing is known yet.
	Ticks(ctx context.Context, username string, force bool) (string, error)
}

// TickCache remembers ticks per username, scraping them from the
// user's public profile page.
type TickCache struct {
	client  Doer
	baseURL string
	ticks   *cache.Cache
}

// NewTickCache makes a TickCache that fetches profiles from baseURL.
func NewTickCache(client Doer, baseURL string) *TickCache {
	return &TickCache{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		ticks:   cache.New(cache.NoExpiration, 0),
	}
}

// Ticks implements TickSource.
func (tc *TickCache) Ticks(ctx context.Context, username string, force bool) (string, error) {
	if !force {
		if ticks, found := tc.ticks.Get(username); found {
			return ticks.(string), nil
		}
	}
	ticks, err := tc.fetch(ctx, username)
	if err != nil {
		return "", err
	}
	tc.ticks.Set(username, ticks, cache.NoExpiration)
	return ticks, nil
}

// Forget drops the cached ticks of username.
func (tc *TickCache) Forget(username string) {
	tc.ticks.Delete(username)
}

func (tc *TickCache) fetch(ctx context.Context, username string) (string, error) {
	req, err := newRequest(ctx, http.MethodGet, tc.baseURL+"/"+username, nil, false)
	if err != nil {
		return "", err
	}
	resp, err := send(tc.client, req)
	if err != nil {
		return "", err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", &Error{Kind: KindUsernameNotFound, Status: resp.StatusCode}
	default:
		return "", &Error{Kind: KindUnexpectedStatus, Status: resp.StatusCode}
	}

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Kind: KindWeirdResponse, Err: err}
	}
	return extractTicks(body)
}

// extractTicks finds the value of the TreeTicks input.
func extractTicks(body []byte) (string, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return "", newError(KindWeirdResponse)
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", &Error{Kind: KindWeirdResponse, Err: err}
	}
	input := findFirst(doc, func(n *html.Node) bool {
		name, _ := attr(n, "name")
		return n.Data == "input" && name == "TreeTicks"
	})
	if input == nil {
		return "", newError(KindWeirdResponse)
	}
	value, ok := attr(input, "value")
	if !ok {
		return "", newError(KindWeirdResponse)
	}
	return value, nil
}
