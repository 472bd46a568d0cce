package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"cardhall/internal/models"
	"cardhall/internal/pagination"
	"cardhall/internal/storage"
)

func seedUser(t *testing.T, repo *storage.MemoryRepository, email string, kind models.UserKind) models.User {
	t.Helper()
	user, err := repo.CreateUser(context.Background(), storage.CreateUserParams{
		Email:    email,
		Password: "opensesame",
		Nickname: "Seeded",
		Kind:     kind,
	})
	if err != nil {
		t.Fatalf("CreateUser(%s) error: %v", email, err)
	}
	return user
}

func seedCards(t *testing.T, repo *storage.MemoryRepository, owner models.User, count int) []models.Card {
	t.Helper()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cards := make([]models.Card, 0, count)
	for i := 0; i < count; i++ {
		card, err := repo.CreateCard(context.Background(), storage.CreateCardParams{
			OwnerID: owner.ID,
			Rating:  float64(i) + 0.5,
			OwnedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("CreateCard %d error: %v", i, err)
		}
		cards = append(cards, card)
	}
	return cards
}

func getCards(t *testing.T, handler *Handler, user models.User, query url.Values) *httptest.ResponseRecorder {
	t.Helper()
	target := "/api/users/" + user.ID.String() + "/cards"
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}
	rec := httptest.NewRecorder()
	handler.UserByID(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeConnection(t *testing.T, rec *httptest.ResponseRecorder) pagination.Connection {
	t.Helper()
	var conn pagination.Connection
	if err := json.NewDecoder(rec.Body).Decode(&conn); err != nil {
		t.Fatalf("decode connection: %v", err)
	}
	return conn
}

func TestGetUserOmitsEmail(t *testing.T) {
	handler, repo := newTestHandler(t)
	user := seedUser(t, repo, "profile@example.com", models.UserKindNormal)

	rec := httptest.NewRecorder()
	handler.UserByID(rec, httptest.NewRequest(http.MethodGet, "/api/users/"+user.ID.String(), nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "example.com") {
		t.Fatalf("public profile must not expose the email: %s", body)
	}
	var payload userResponse
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if payload.ID != user.ID.String() || payload.Nickname == "" {
		t.Fatalf("unexpected profile payload: %+v", payload)
	}
}

func TestGetUserNotFound(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.UserByID(rec, httptest.NewRequest(http.MethodGet, "/api/users/6f2a1f80-0000-4000-8000-000000000001", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", rec.Code)
	}
}

func TestUserByIDRejectsMalformedID(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.UserByID(rec, httptest.NewRequest(http.MethodGet, "/api/users/not-a-uuid", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", rec.Code)
	}
}

func TestGetUserEmailAuthorization(t *testing.T) {
	handler, repo := newTestHandler(t)
	owner := seedUser(t, repo, "owner@example.com", models.UserKindNormal)
	other := seedUser(t, repo, "other@example.com", models.UserKindNormal)
	super := seedUser(t, repo, "super@example.com", models.UserKindSuper)
	target := "/api/users/" + owner.ID.String() + "/email"

	t.Run("owner sees own email", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.UserByID(rec, withSession(httptest.NewRequest(http.MethodGet, target, nil), owner))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var payload map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload["email"] != "owner@example.com" {
			t.Fatalf("unexpected email: %q", payload["email"])
		}
	})

	t.Run("super sees any email", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.UserByID(rec, withSession(httptest.NewRequest(http.MethodGet, target, nil), super))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 for super account, got %d", rec.Code)
		}
	})

	t.Run("other user is denied", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.UserByID(rec, withSession(httptest.NewRequest(http.MethodGet, target, nil), other))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403 for unrelated account, got %d", rec.Code)
		}
	})

	t.Run("anonymous is denied", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.UserByID(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403 for anonymous caller, got %d", rec.Code)
		}
	})
}

func TestGetUserEmailHidesExistenceFromUnprivileged(t *testing.T) {
	handler, repo := newTestHandler(t)
	super := seedUser(t, repo, "admin@example.com", models.UserKindSuper)
	missing := "/api/users/6f2a1f80-0000-4000-8000-00000000beef/email"

	rec := httptest.NewRecorder()
	handler.UserByID(rec, httptest.NewRequest(http.MethodGet, missing, nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("anonymous caller must get 403 for a missing account, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.UserByID(rec, withSession(httptest.NewRequest(http.MethodGet, missing, nil), super))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("super caller should learn the account is missing, got %d", rec.Code)
	}
}

func TestListCardsForwardPagination(t *testing.T) {
	handler, repo := newTestHandler(t)
	owner := seedUser(t, repo, "cards@example.com", models.UserKindNormal)
	cards := seedCards(t, repo, owner, 5)

	rec := getCards(t, handler, owner, url.Values{"first": {"2"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	conn := decodeConnection(t, rec)
	if len(conn.Edges) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(conn.Edges))
	}
	if !conn.PageInfo.HasNextPage || conn.PageInfo.HasPreviousPage {
		t.Fatalf("unexpected first page flags: %+v", conn.PageInfo)
	}
	if conn.Edges[0].Node.ID != cards[0].ID || conn.Edges[1].Node.ID != cards[1].ID {
		t.Fatal("expected edges in ascending ownedAt order")
	}

	rec = getCards(t, handler, owner, url.Values{
		"first": {"3"},
		"after": {conn.Edges[1].Cursor},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on second page, got %d", rec.Code)
	}
	second := decodeConnection(t, rec)
	if len(second.Edges) != 3 {
		t.Fatalf("expected 3 edges on final page, got %d", len(second.Edges))
	}
	if second.PageInfo.HasNextPage {
		t.Fatal("final page must not report a next page")
	}
	if !second.PageInfo.HasPreviousPage {
		t.Fatal("page after a client cursor must report a previous page")
	}
	if second.Edges[0].Node.ID != cards[2].ID {
		t.Fatal("second page should start after the cursor")
	}
}

func TestListCardsBackwardPagination(t *testing.T) {
	handler, repo := newTestHandler(t)
	owner := seedUser(t, repo, "back@example.com", models.UserKindNormal)
	cards := seedCards(t, repo, owner, 4)

	rec := getCards(t, handler, owner, url.Values{"last": {"2"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	conn := decodeConnection(t, rec)
	if len(conn.Edges) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(conn.Edges))
	}
	if !conn.PageInfo.HasPreviousPage || conn.PageInfo.HasNextPage {
		t.Fatalf("unexpected tail page flags: %+v", conn.PageInfo)
	}
	if conn.Edges[0].Node.ID != cards[2].ID || conn.Edges[1].Node.ID != cards[3].ID {
		t.Fatal("tail page must hold the newest cards in ascending order")
	}
}

func TestListCardsRatingCursor(t *testing.T) {
	handler, repo := newTestHandler(t)
	owner := seedUser(t, repo, "rating@example.com", models.UserKindNormal)
	cards := seedCards(t, repo, owner, 3)

	after, err := pagination.RatingCursor(cards[0].Rating).Encode()
	if err != nil {
		t.Fatalf("encode rating cursor: %v", err)
	}
	rec := getCards(t, handler, owner, url.Values{
		"first": {"10"},
		"after": {after},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	conn := decodeConnection(t, rec)
	if len(conn.Edges) != 2 {
		t.Fatalf("expected the two higher-rated cards, got %d", len(conn.Edges))
	}
	if conn.Edges[0].Node.Rating >= conn.Edges[1].Node.Rating {
		t.Fatal("expected ascending rating order")
	}
}

func TestListCardsRejectsFirstAndLastTogether(t *testing.T) {
	handler, repo := newTestHandler(t)
	owner := seedUser(t, repo, "both@example.com", models.UserKindNormal)

	rec := getCards(t, handler, owner, url.Values{"first": {"2"}, "last": {"2"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 when both counts are given, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "first or last, not both") {
		t.Fatalf("unexpected error body: %s", rec.Body.String())
	}
}

func TestListCardsRejectsCorruptCursor(t *testing.T) {
	handler, repo := newTestHandler(t)
	owner := seedUser(t, repo, "corrupt@example.com", models.UserKindNormal)

	rec := getCards(t, handler, owner, url.Values{"after": {"%%%not-base64%%%"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for corrupt cursor, got %d", rec.Code)
	}
}

func TestListCardsUnknownOwner(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.UserByID(rec, httptest.NewRequest(http.MethodGet, "/api/users/6f2a1f80-0000-4000-8000-00000000dead/cards", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown owner, got %d", rec.Code)
	}
}

func TestGrantCardRequiresSuper(t *testing.T) {
	handler, repo := newTestHandler(t)
	owner := seedUser(t, repo, "grantee@example.com", models.UserKindNormal)
	super := seedUser(t, repo, "granter@example.com", models.UserKindSuper)
	target := "/api/users/" + owner.ID.String() + "/cards"
	body := `{"rating":7.5,"ownedAt":"2024-06-01T10:00:00Z"}`

	t.Run("anonymous", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.UserByID(rec, httptest.NewRequest(http.MethodPost, target, strings.NewReader(body)))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("normal account", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := withSession(httptest.NewRequest(http.MethodPost, target, strings.NewReader(body)), owner)
		handler.UserByID(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("super account", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := withSession(httptest.NewRequest(http.MethodPost, target, strings.NewReader(body)), super)
		handler.UserByID(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		var card models.Card
		if err := json.NewDecoder(rec.Body).Decode(&card); err != nil {
			t.Fatalf("decode card: %v", err)
		}
		if card.Rating != 7.5 {
			t.Fatalf("unexpected rating: %v", card.Rating)
		}
		if card.OwnerID == nil || *card.OwnerID != owner.ID {
			t.Fatalf("card bound to wrong owner: %v", card.OwnerID)
		}
	})

	t.Run("unknown target", func(t *testing.T) {
		rec := httptest.NewRecorder()
		missing := "/api/users/6f2a1f80-0000-4000-8000-00000000f00d/cards"
		req := withSession(httptest.NewRequest(http.MethodPost, missing, strings.NewReader(body)), super)
		handler.UserByID(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404 for unknown target, got %d", rec.Code)
		}
	})
}

func TestVersionEndpoint(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.Version(rec, httptest.NewRequest(http.MethodGet, "/api/version", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from version endpoint, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), APIVersion) {
		t.Fatalf("unexpected version body: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.Version(rec, httptest.NewRequest(http.MethodPost, "/api/version", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for POST, got %d", rec.Code)
	}
}

func TestHealthReportsOK(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from health check, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("unexpected health body: %s", rec.Body.String())
	}
}
