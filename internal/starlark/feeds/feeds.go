// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package feeds implements a Starlark module for fetching web feeds.
//
// Feed items are produced as a one-shot stream, so a cached property whose
// getter fetches a feed caches a replayable generator over the items and
// the feed is fetched and parsed at most once per instance.
package feeds

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.astrophena.name/starcache/internal/starlark/cache"
	"go.astrophena.name/starcache/internal/starlark/starconv"
	"go.astrophena.name/starcache/internal/version"

	"github.com/mmcdole/gofeed"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

var defaultClient = &http.Client{
	Timeout: 10 * time.Second,
}

// Module returns a Starlark module that exposes feed fetching.
//
// This module provides a single function:
//
//   - fetch(url) -> stream: Returns a one-shot stream of feed items. The
//     feed is fetched and parsed lazily, on the first pull from the
//     stream. Each item is a dict with title, link, guid, description and
//     published keys.
//
// If client is nil, a default client with a 10 second timeout is used.
func Module(ctx context.Context, client *http.Client) *starlarkstruct.Module {
	m := &module{
		ctx:   ctx,
		httpc: client,
		fp:    gofeed.NewParser(),
	}
	if m.httpc == nil {
		m.httpc = defaultClient
	}
	return &starlarkstruct.Module{
		Name: "feeds",
		Members: starlark.StringDict{
			"fetch": starlark.NewBuiltin("feeds.fetch", m.fetch),
		},
	}
}

type module struct {
	ctx   context.Context
	httpc *http.Client
	fp    *gofeed.Parser
}

func (m *module) fetch(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var url string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "url", &url); err != nil {
		return nil, err
	}

	var (
		items []*gofeed.Item
		pos   int
	)
	fetched := false
	return cache.NewStream(b.Name(), func() (starlark.Value, bool, error) {
		if !fetched {
			feed, err := m.get(url)
			if err != nil {
				return nil, false, err
			}
			items = feed.Items
			fetched = true
		}
		if pos >= len(items) {
			return nil, false, nil
		}
		item := items[pos]
		pos++
		v, err := itemValue(item)
		if err != nil {
			return nil, false, err
		}
		return v, true, nil
	}), nil
}

func (m *module) get(url string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(m.ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", version.UserAgent())

	res, err := m.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %q: want 200, got %d", url, res.StatusCode)
	}

	return m.fp.Parse(res.Body)
}

func itemValue(item *gofeed.Item) (starlark.Value, error) {
	v := map[string]any{
		"title":       item.Title,
		"link":        item.Link,
		"guid":        item.GUID,
		"description": item.Description,
	}
	if item.PublishedParsed != nil {
		v["published"] = *item.PublishedParsed
	}
	return starconv.ToValue(v)
}
