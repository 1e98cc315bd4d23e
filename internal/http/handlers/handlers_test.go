package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/vibescrow/backend/internal/auth"
	"github.com/vibescrow/backend/internal/events"
	"github.com/vibescrow/backend/internal/models"
	"github.com/vibescrow/backend/internal/nft"
	"go.uber.org/zap"
)

type stubProxy struct {
	body   string
	err    error
	action string
	params url.Values
}

func (s *stubProxy) Do(_ context.Context, action string, params url.Values) (json.RawMessage, error) {
	s.action, s.params = action, params
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(s.body), nil
}

func doRequest(t *testing.T, app *fiber.App, method, target, body string) (int, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func TestNFTProxy(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"ok", nil, 200, `{"ownedNfts":[]}`},
		{"bad request", &nft.RequestError{Message: "Invalid request"}, 400, `{"error":"Invalid request"}`},
		{"upstream", &nft.StatusError{Op: "getNFTsForOwner", Status: 502}, 500, `{"error":"Internal server error"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &stubProxy{body: `{"ownedNfts":[]}`, err: tt.err}
			app := fiber.New()
			app.Get("/api/nft", NewProxyHandler(p, nil, zap.NewNop()).NFT)

			status, body := doRequest(t, app, "GET", "/api/nft?action=getNFTsForOwner&owner=0xabc", "")
			if status != tt.status || body != tt.body {
				t.Fatalf("got %d %s, want %d %s", status, body, tt.status, tt.body)
			}
			if p.action != "getNFTsForOwner" || p.params.Get("owner") != "0xabc" {
				t.Errorf("forwarded %q %v", p.action, p.params)
			}
		})
	}
}

func TestVibeProxy(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"ok", nil, 200, `{"games":[]}`},
		{"missing owner", &nft.RequestError{Message: "Owner address required"}, 400, `{"error":"Owner address required"}`},
		{"unknown action", nft.ErrInvalidAction, 400, `{"error":"Invalid action"}`},
		{"upstream status", &nft.StatusError{Op: "packs", Status: 404}, 500, `{"error":"Failed to fetch packs: 404"}`},
		{"transport", errors.New("dial tcp: refused"), 500, `{"error":"dial tcp: refused"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &stubProxy{body: `{"games":[]}`, err: tt.err}
			app := fiber.New()
			app.Get("/api/vibe", NewProxyHandler(nil, p, zap.NewNop()).Vibe)

			status, body := doRequest(t, app, "GET", "/api/vibe?action=getPacks", "")
			if status != tt.status || body != tt.body {
				t.Fatalf("got %d %s, want %d %s", status, body, tt.status, tt.body)
			}
		})
	}
}

type recordingProcessor struct{ bodies []string }

func (r *recordingProcessor) Handle(_ context.Context, body []byte) {
	r.bodies = append(r.bodies, string(body))
}

func TestWebhook(t *testing.T) {
	p := &recordingProcessor{}
	h := NewWebhookHandler(p)
	app := fiber.New()
	app.Post("/api/webhook", h.Receive)
	app.Get("/api/webhook", h.Status)

	for _, body := range []string{`{"type":"frame_added","data":{"fid":1}}`, `garbage`} {
		status, resp := doRequest(t, app, "POST", "/api/webhook", body)
		if status != 200 || resp != `{"success":true}` {
			t.Fatalf("POST %q: %d %s", body, status, resp)
		}
	}
	if len(p.bodies) != 2 {
		t.Fatalf("processed %d bodies", len(p.bodies))
	}

	status, resp := doRequest(t, app, "GET", "/api/webhook", "")
	if status != 200 || resp != `{"status":"ok","message":"VibEscrow webhook endpoint"}` {
		t.Fatalf("GET: %d %s", status, resp)
	}
}

type fakeOffers struct {
	next   uint64
	failID uint64
}

func (f *fakeOffers) NextOfferID(context.Context) (uint64, error) { return f.next, nil }

func (f *fakeOffers) GetOffer(_ context.Context, id uint64) (*models.Offer, error) {
	if id == f.failID {
		return nil, errors.New("execution reverted")
	}
	status := models.OfferStatusOpen
	if id%2 == 1 {
		status = models.OfferStatusAccepted
	}
	return &models.Offer{Maker: "0xmaker", Status: status, DesiredTokenID: big.NewInt(1)}, nil
}

func (f *fakeOffers) GetOfferNFTs(context.Context, uint64) ([]models.NFTRef, error) {
	return []models.NFTRef{{Collection: "0xc", TokenID: big.NewInt(1), Amount: big.NewInt(1)}}, nil
}

func TestOffers(t *testing.T) {
	app := fiber.New()
	h := NewOfferHandler(&fakeOffers{next: 4, failID: 2}, 2, zap.NewNop())
	app.Get("/api/offers", h.ListOffers)
	app.Get("/api/offers/:id", h.GetOffer)

	var list struct {
		Data []struct {
			ID uint64 `json:"id"`
		} `json:"data"`
	}
	status, body := doRequest(t, app, "GET", "/api/offers", "")
	if status != 200 {
		t.Fatalf("list: %d %s", status, body)
	}
	_ = json.Unmarshal([]byte(body), &list)
	if len(list.Data) != 3 || list.Data[0].ID != 0 || list.Data[2].ID != 3 {
		t.Fatalf("offers = %+v", list.Data)
	}

	_, body = doRequest(t, app, "GET", "/api/offers?status=open", "")
	_ = json.Unmarshal([]byte(body), &list)
	if len(list.Data) != 1 || list.Data[0].ID != 0 {
		t.Fatalf("open offers = %+v", list.Data)
	}

	tests := []struct {
		target string
		status int
	}{
		{"/api/offers/1", 200},
		{"/api/offers/4", 404},
		{"/api/offers/2", 502},
		{"/api/offers/abc", 400},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			if status, body := doRequest(t, app, "GET", tt.target, ""); status != tt.status {
				t.Fatalf("status = %d (%s), want %d", status, body, tt.status)
			}
		})
	}
}

func TestOffersWithoutEscrow(t *testing.T) {
	app := fiber.New()
	app.Get("/api/offers", NewOfferHandler(nil, 1, zap.NewNop()).ListOffers)
	if status, _ := doRequest(t, app, "GET", "/api/offers", ""); status != 503 {
		t.Fatalf("status = %d", status)
	}
}

type fakeLister struct {
	items []models.NFTMetadata
	err   error
}

func (f *fakeLister) FetchAll(context.Context, string) ([]models.NFTMetadata, error) {
	return f.items, f.err
}

type fakeCards struct {
	cards []models.BoosterCard
}

func (f *fakeCards) OwnedCards(context.Context, string, int) ([]models.BoosterCard, error) {
	return f.cards, nil
}

func (f *fakeCards) Card(_ context.Context, id *big.Int) (models.BoosterCard, error) {
	for _, c := range f.cards {
		if c.TokenID.Cmp(id) == 0 {
			return c, nil
		}
	}
	return models.BoosterCard{}, errors.New("execution reverted")
}

const ownerAddr = "0xabcdefabcdef0123456789abcdefabcdef012345"

func newAssetApp(lister NFTLister, cards CardReader) *fiber.App {
	h := NewAssetHandler(lister, cards, 2, "secret", time.Minute, zap.NewNop())
	app := fiber.New()
	app.Get("/api/nfts/:owner", h.ListNFTs)
	app.Get("/api/cards/token/:tokenId", h.GetCard)
	app.Get("/api/cards/:owner", h.ListCards)
	app.Post("/api/game/ticket", h.IssueTicket)
	return app
}

func TestListNFTs(t *testing.T) {
	items := []models.NFTMetadata{
		{TokenID: "1", Name: "Mythic Dragon", Collection: "0xa", Origin: models.OriginMarketplace},
		{TokenID: "2", Name: "Plain Rock", Collection: "0xb", Origin: models.OriginGeneral},
	}

	tests := []struct {
		name   string
		lister *fakeLister
		target string
		status int
		total  int
	}{
		{"all", &fakeLister{items: items}, "/api/nfts/" + ownerAddr, 200, 2},
		{"search", &fakeLister{items: items}, "/api/nfts/" + ownerAddr + "?q=dragon", 200, 1},
		{"sources down", &fakeLister{err: nft.ErrAllSourcesFailed}, "/api/nfts/" + ownerAddr, 200, 0},
		{"bad owner", &fakeLister{}, "/api/nfts/0x123", 400, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doRequest(t, newAssetApp(tt.lister, &fakeCards{}), "GET", tt.target, "")
			if status != tt.status {
				t.Fatalf("status = %d (%s)", status, body)
			}
			if status != 200 {
				return
			}
			var resp struct {
				Items []models.NFTMetadata `json:"items"`
				Total int                  `json:"total"`
			}
			_ = json.Unmarshal([]byte(body), &resp)
			if resp.Total != tt.total || len(resp.Items) != tt.total {
				t.Fatalf("total = %d, items = %d, want %d", resp.Total, len(resp.Items), tt.total)
			}
		})
	}
}

func TestCardsAndTicket(t *testing.T) {
	cards := &fakeCards{cards: []models.BoosterCard{
		models.NewOpenedCard("0xbooster", big.NewInt(10), models.RarityEpic, big.NewInt(123), "0x"),
		models.NewUnopenedCard("0xbooster", big.NewInt(11)),
	}}
	app := newAssetApp(&fakeLister{}, cards)

	status, body := doRequest(t, app, "GET", "/api/cards/"+ownerAddr, "")
	if status != 200 || !strings.Contains(body, `"unopened_packs":1`) {
		t.Fatalf("cards: %d %s", status, body)
	}

	if status, _ := doRequest(t, app, "GET", "/api/cards/token/10", ""); status != 200 {
		t.Fatalf("card status = %d", status)
	}
	if status, _ := doRequest(t, app, "GET", "/api/cards/token/x", ""); status != 400 {
		t.Fatalf("bad token status = %d", status)
	}

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"opened", `{"tokenId":"10"}`, 201},
		{"unopened", `{"tokenId":"11"}`, 409},
		{"unknown", `{"tokenId":"99"}`, 404},
		{"malformed", `{"tokenId":"ten"}`, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doRequest(t, app, "POST", "/api/game/ticket", tt.body)
			if status != tt.status {
				t.Fatalf("status = %d (%s), want %d", status, body, tt.status)
			}
			if status != 201 {
				return
			}
			var resp struct {
				Ticket string `json:"ticket"`
			}
			_ = json.Unmarshal([]byte(body), &resp)
			claims, err := auth.ParseTicket("secret", resp.Ticket)
			if err != nil {
				t.Fatal(err)
			}
			if claims.TokenID != "10" || claims.Multiplier != 3 {
				t.Fatalf("claims = %+v", claims)
			}
		})
	}
}

func TestGameReply(t *testing.T) {
	tests := []struct {
		name  string
		msg   string
		ok    bool
		score int64
	}{
		{"top-level score", `{"type":"GAME_OVER","score":101}`, true, 151},
		{"payload score", `{"type":"GAME_OVER","payload":{"score":10}}`, true, 15},
		{"other message", `{"type":"PING"}`, false, 0},
		{"not json", `hello`, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, ok := GameReply([]byte(tt.msg), 1.5)
			if ok != tt.ok {
				t.Fatalf("ok = %v", ok)
			}
			if !ok {
				return
			}
			if reply.Type != events.EventFinalScore || reply.Payload["score"] != tt.score {
				t.Fatalf("reply = %+v", reply)
			}
		})
	}
}
