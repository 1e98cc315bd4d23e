package nft

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/vibescrow/backend/internal/models"
	"go.uber.org/zap"
)

const owner = "0xabcdefabcdef0123456789abcdefabcdef012345"

func TestAlchemyDoBuildsUpstreamURL(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewAlchemyClient(srv.URL, "secret", 0, zap.NewNop())

	tests := []struct {
		name      string
		action    string
		params    url.Values
		wantPath  string
		wantQuery []string
	}{
		{
			name:      "owner listing",
			action:    ActionNFTsForOwner,
			params:    url.Values{"owner": {owner}},
			wantPath:  "/secret/getNFTsForOwner",
			wantQuery: []string{"owner=" + owner, "withMetadata=true", "pageSize=100"},
		},
		{
			name:      "contract metadata",
			action:    ActionContractMetadata,
			params:    url.Values{"contractAddress": {"0x1"}},
			wantPath:  "/secret/getContractMetadata",
			wantQuery: []string{"contractAddress=0x1"},
		},
		{
			name:      "token metadata",
			action:    ActionNFTMetadata,
			params:    url.Values{"contractAddress": {"0x1"}, "tokenId": {"7"}},
			wantPath:  "/secret/getNFTMetadata",
			wantQuery: []string{"contractAddress=0x1", "tokenId=7", "refreshCache=false"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := c.Do(context.Background(), tt.action, tt.params)
			if err != nil {
				t.Fatal(err)
			}
			if string(body) != `{"ok":true}` {
				t.Errorf("body = %s", body)
			}
			if gotPath != tt.wantPath {
				t.Errorf("path = %s, want %s", gotPath, tt.wantPath)
			}
			for _, q := range tt.wantQuery {
				if !strings.Contains(gotQuery, q) {
					t.Errorf("query %q missing %q", gotQuery, q)
				}
			}
		})
	}
}

func TestAlchemyDoRejectsMissingParams(t *testing.T) {
	c := NewAlchemyClient("http://unused.invalid", "k", 0, zap.NewNop())

	cases := []struct {
		action string
		params url.Values
	}{
		{ActionNFTsForOwner, url.Values{}},
		{ActionContractMetadata, url.Values{}},
		{ActionNFTMetadata, url.Values{"contractAddress": {"0x1"}}},
		{"somethingElse", url.Values{"owner": {owner}}},
	}
	for _, tc := range cases {
		t.Run(tc.action, func(t *testing.T) {
			_, err := c.Do(context.Background(), tc.action, tc.params)
			var reqErr *RequestError
			if !errors.As(err, &reqErr) || reqErr.Message != "Invalid request" {
				t.Fatalf("err = %v, want Invalid request", err)
			}
		})
	}
}

func TestAlchemyFetchOwnedParsesFallbacks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ownedNfts":[
			{"tokenId":"1","contract":{"address":"0xAAAA000000000000000000000000000000000001","name":"Apes"},
			 "metadata":{"name":"Ape #1"},"media":[{"gateway":"https://img/1.png"}]},
			{"id":{"tokenId":"0x0a"},"contract":{"address":"0xbbbb000000000000000000000000000000000002","symbol":"BB"},
			 "metadata":{"image":"ipfs://2"}},
			{"contract":{"address":"0xcccc000000000000000000000000000000000003"}}
		]}`))
	}))
	defer srv.Close()

	c := NewAlchemyClient(srv.URL, "k", 0, zap.NewNop())
	items, err := c.FetchOwned(context.Background(), "0xABCDEFabcdef0123456789ABCDEFabcdef012345")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items", len(items))
	}

	want := []models.NFTMetadata{
		{TokenID: "1", Collection: "0xaaaa000000000000000000000000000000000001", CollectionName: "Apes", Name: "Ape #1", Image: "https://img/1.png"},
		{TokenID: "10", Collection: "0xbbbb000000000000000000000000000000000002", CollectionName: "BB", Name: "#10", Image: "ipfs://2"},
		{TokenID: "0", Collection: "0xcccc000000000000000000000000000000000003", CollectionName: "Unknown Collection", Name: "#0", Image: models.PlaceholderImage},
	}
	for i, w := range want {
		got := items[i]
		if got.TokenID != w.TokenID || got.Collection != w.Collection || got.CollectionName != w.CollectionName ||
			got.Name != w.Name || got.Image != w.Image {
			t.Errorf("item %d = %+v, want %+v", i, got, w)
		}
		if got.Owner != owner || got.Origin != models.OriginGeneral {
			t.Errorf("item %d owner/origin = %s/%s", i, got.Owner, got.Origin)
		}
	}
}

func TestAlchemyStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewAlchemyClient(srv.URL, "k", 0, zap.NewNop())
	_, err := c.FetchOwned(context.Background(), owner)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != http.StatusTooManyRequests {
		t.Fatalf("err = %v, want StatusError 429", err)
	}
}

type mapCache map[string][]byte

func (m mapCache) Get(_ context.Context, key string) ([]byte, bool) {
	b, ok := m[key]
	return b, ok
}

func (m mapCache) Set(_ context.Context, key string, body []byte) { m[key] = body }

func TestUpstreamCache(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`{"name":"Apes"}`))
	}))
	defer srv.Close()

	c := NewAlchemyClient(srv.URL, "k", 0, zap.NewNop()).WithCache(mapCache{})
	params := url.Values{"contractAddress": {"0x1"}}
	for i := 0; i < 3; i++ {
		if _, err := c.Do(context.Background(), ActionContractMetadata, params); err != nil {
			t.Fatal(err)
		}
	}
	if hits != 1 {
		t.Fatalf("upstream hit %d times, want 1", hits)
	}
}
