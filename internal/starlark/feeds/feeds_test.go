// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package feeds

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.astrophena.name/starcache/internal/starlark/cache"
	"go.astrophena.name/starcache/internal/testutil"

	"go.starlark.net/starlark"
)

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Feed</title>
    <link>https://example.com</link>
    <item>
      <title>First post</title>
      <link>https://example.com/first</link>
      <guid>https://example.com/first</guid>
      <description>Hello.</description>
      <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
    </item>
    <item>
      <title>Second post</title>
      <link>https://example.com/second</link>
      <guid>https://example.com/second</guid>
      <description>Hello again.</description>
    </item>
  </channel>
</rss>`

func fetchStream(t *testing.T, ts *httptest.Server) *cache.Stream {
	t.Helper()
	m := Module(t.Context(), ts.Client())
	fetch, err := m.Attr("fetch")
	if err != nil {
		t.Fatal(err)
	}
	thread := &starlark.Thread{Name: t.Name()}
	v, err := starlark.Call(thread, fetch.(starlark.Callable), starlark.Tuple{starlark.String(ts.URL)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	s, ok := v.(*cache.Stream)
	if !ok {
		t.Fatalf("fetch returned %s, want stream", v.Type())
	}
	return s
}

func itemField(t *testing.T, item starlark.Value, key string) string {
	t.Helper()
	m, ok := item.(starlark.Mapping)
	if !ok {
		t.Fatalf("item is %s, want a dict", item.Type())
	}
	v, found, err := m.Get(starlark.String(key))
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatalf("item has no %q key", key)
	}
	s, ok := starlark.AsString(v)
	if !ok {
		t.Fatalf("item %q is %s, want a string", key, v.Type())
	}
	return s
}

func TestFetch(t *testing.T) {
	t.Parallel()

	var requests int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rssFeed))
	}))
	defer ts.Close()

	s := fetchStream(t, ts)

	// The stream is lazy: nothing is fetched until the first pull.
	testutil.AssertEqual(t, requests, 0)

	g, err := cache.NewGenerator(s)
	if err != nil {
		t.Fatal(err)
	}

	var items []starlark.Value
	var v starlark.Value
	it := g.Iterate()
	for it.Next(&v) {
		items = append(items, v)
	}
	it.Done()

	testutil.AssertEqual(t, len(items), 2)
	testutil.AssertEqual(t, itemField(t, items[0], "title"), "First post")
	testutil.AssertEqual(t, itemField(t, items[0], "link"), "https://example.com/first")
	testutil.AssertEqual(t, itemField(t, items[1], "title"), "Second post")

	// A second iteration replays materialized items without refetching.
	n := 0
	it = g.Iterate()
	for it.Next(&v) {
		n++
	}
	it.Done()
	testutil.AssertEqual(t, n, 2)
	testutil.AssertEqual(t, requests, 1)
}

func TestFetchPublished(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rssFeed))
	}))
	defer ts.Close()

	s := fetchStream(t, ts)
	first, ok, err := s.Next()
	if err != nil || !ok {
		t.Fatalf("first pull: ok=%v, err=%v", ok, err)
	}
	m := first.(starlark.Mapping)
	if _, found, _ := m.Get(starlark.String("published")); !found {
		t.Fatal("dated item has no published key")
	}

	second, ok, err := s.Next()
	if err != nil || !ok {
		t.Fatalf("second pull: ok=%v, err=%v", ok, err)
	}
	m = second.(starlark.Mapping)
	if _, found, _ := m.Get(starlark.String("published")); found {
		t.Fatal("undated item has a published key")
	}
}

func TestFetchHTTPError(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer ts.Close()

	s := fetchStream(t, ts)
	_, ok, err := s.Next()
	if ok {
		t.Fatal("pull from failing feed succeeded")
	}
	if err == nil || !strings.Contains(err.Error(), "want 200, got 500") {
		t.Fatalf("got error %v", err)
	}
	if !s.Exhausted() {
		t.Fatal("stream not exhausted after error")
	}
}

func TestFetchSendsUserAgent(t *testing.T) {
	t.Parallel()

	var ua string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rssFeed))
	}))
	defer ts.Close()

	s := fetchStream(t, ts)
	if _, _, err := s.Next(); err != nil {
		t.Fatal(err)
	}
	if ua == "" {
		t.Fatal("no User-Agent header sent")
	}
}
