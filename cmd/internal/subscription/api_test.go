package subscription

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"carteira/cmd/internal/identity"
)

const apiTestSecret = "0123456789abcdef0123456789abcdef"

func newAPIStack(t *testing.T) (http.Handler, *Service) {
	t.Helper()
	svc, _ := newTestService(t)
	h, err := NewHandler(nil, svc)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	verifier, err := identity.NewVerifier(apiTestSecret)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	mux := http.NewServeMux()
	h.Register(mux)
	return identity.RequireSession(verifier, mux), svc
}

func apiToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"sid": "sess_" + userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(apiTestSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func doJSON(t *testing.T, handler http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

const createBody = `{
	"name": "Streaming family plan",
	"description": "Shared with the flat",
	"type": "private",
	"max_members": 4,
	"price_in_cents": 1999,
	"renewal_day": 15,
	"account": {"account_username": "family@example.com", "account_password": "hunter2"}
}`

func TestCreateListGetOverHTTP(t *testing.T) {
	handler, _ := newAPIStack(t)
	owner := apiToken(t, "owner")

	rr := doJSON(t, handler, http.MethodPost, "/api/subscriptions", owner, createBody)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created Subscription
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.OwnerID != "owner" || created.MaxMembers != 4 {
		t.Fatalf("unexpected created row: %+v", created)
	}

	rr = doJSON(t, handler, http.MethodGet, "/api/subscriptions", owner, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rr.Code)
	}
	var list struct {
		Subscriptions []Subscription `json:"subscriptions"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Subscriptions) != 1 {
		t.Fatalf("expected 1 subscription, got %d", len(list.Subscriptions))
	}

	rr = doJSON(t, handler, http.MethodGet, "/api/subscriptions/"+created.ID, owner, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rr.Code)
	}
}

func TestInvalidCreateRejected(t *testing.T) {
	handler, _ := newAPIStack(t)
	owner := apiToken(t, "owner")

	body := `{"name":"x","type":"private","max_members":99,"price_in_cents":100,"renewal_day":1}`
	rr := doJSON(t, handler, http.MethodPost, "/api/subscriptions", owner, body)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "invalid_request") {
		t.Fatalf("expected invalid_request code: %s", rr.Body.String())
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	handler, _ := newAPIStack(t)
	rr := doJSON(t, handler, http.MethodGet, "/api/subscriptions", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestOwnerOnlyMutationOverHTTP(t *testing.T) {
	handler, svc := newAPIStack(t)
	owner := apiToken(t, "owner")
	friend := apiToken(t, "friend")
	stranger := apiToken(t, "stranger")

	rr := doJSON(t, handler, http.MethodPost, "/api/subscriptions", owner, createBody)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d", rr.Code)
	}
	var created Subscription
	_ = json.Unmarshal(rr.Body.Bytes(), &created)

	if err := svc.AddMember(context.Background(), "owner", created.ID, "friend"); err != nil {
		t.Fatalf("AddMember: %v", err)
	}

	update := strings.Replace(createBody, "Streaming family plan", "Renamed plan", 1)

	rr = doJSON(t, handler, http.MethodPut, "/api/subscriptions/"+created.ID, friend, update)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("member update: expected 403, got %d", rr.Code)
	}
	rr = doJSON(t, handler, http.MethodPut, "/api/subscriptions/"+created.ID, stranger, update)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("stranger update: expected 404, got %d", rr.Code)
	}
	rr = doJSON(t, handler, http.MethodPut, "/api/subscriptions/"+created.ID, owner, update)
	if rr.Code != http.StatusOK {
		t.Fatalf("owner update: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestMemberRoutesOverHTTP(t *testing.T) {
	handler, _ := newAPIStack(t)
	owner := apiToken(t, "owner")

	rr := doJSON(t, handler, http.MethodPost, "/api/subscriptions", owner, createBody)
	var created Subscription
	_ = json.Unmarshal(rr.Body.Bytes(), &created)

	rr = doJSON(t, handler, http.MethodPost,
		fmt.Sprintf("/api/subscriptions/%s/members", created.ID), owner, `{"user_id":"friend"}`)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("add member: expected 204, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, handler, http.MethodGet,
		fmt.Sprintf("/api/subscriptions/%s/members", created.ID), owner, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list members: expected 200, got %d", rr.Code)
	}
	var members struct {
		Members []Member `json:"members"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &members); err != nil {
		t.Fatalf("decode members: %v", err)
	}
	if len(members.Members) != 1 || members.Members[0].UserID != "friend" {
		t.Fatalf("unexpected members: %+v", members.Members)
	}

	rr = doJSON(t, handler, http.MethodDelete,
		fmt.Sprintf("/api/subscriptions/%s/members/friend", created.ID), owner, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("remove member: expected 204, got %d", rr.Code)
	}
}

func TestAccountRevealOverHTTP(t *testing.T) {
	handler, _ := newAPIStack(t)
	owner := apiToken(t, "owner")
	stranger := apiToken(t, "stranger")

	rr := doJSON(t, handler, http.MethodPost, "/api/subscriptions", owner, createBody)
	var created Subscription
	_ = json.Unmarshal(rr.Body.Bytes(), &created)

	rr = doJSON(t, handler, http.MethodGet, "/api/subscriptions/"+created.ID+"/account", owner, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("reveal: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var creds Credentials
	if err := json.Unmarshal(rr.Body.Bytes(), &creds); err != nil {
		t.Fatalf("decode creds: %v", err)
	}
	if creds.Username != "family@example.com" || creds.Password != "hunter2" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}

	rr = doJSON(t, handler, http.MethodGet, "/api/subscriptions/"+created.ID+"/account", stranger, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("stranger reveal: expected 404, got %d", rr.Code)
	}
}

func TestTemplatesOverHTTP(t *testing.T) {
	svc, store := newTestService(t)
	store.templates["tpl_1"] = Template{ID: "tpl_1", Name: "Streaming", Type: TypePrivate, Category: "video", Approved: true}
	store.templates["tpl_2"] = Template{ID: "tpl_2", Name: "Pending", Type: TypePrivate, Category: "music", Approved: false}

	h, err := NewHandler(nil, svc)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	verifier, _ := identity.NewVerifier(apiTestSecret)
	mux := http.NewServeMux()
	h.Register(mux)
	handler := identity.RequireSession(verifier, mux)

	rr := doJSON(t, handler, http.MethodGet, "/api/templates", apiToken(t, "anyone"), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("templates: expected 200, got %d", rr.Code)
	}
	var out struct {
		Templates []Template `json:"templates"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode templates: %v", err)
	}
	if len(out.Templates) != 1 || out.Templates[0].ID != "tpl_1" {
		t.Fatalf("expected only approved templates, got %+v", out.Templates)
	}
}

func TestMalformedSubscriptionIDIs404(t *testing.T) {
	handler, _ := newAPIStack(t)
	owner := apiToken(t, "owner")

	rr := doJSON(t, handler, http.MethodGet, "/api/subscriptions/not-a-uuid", owner, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get: expected 404, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "not_found") {
		t.Fatalf("expected not_found code: %s", rr.Body.String())
	}

	rr = doJSON(t, handler, http.MethodDelete, "/api/subscriptions/not-a-uuid", owner, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("delete: expected 404, got %d: %s", rr.Code, rr.Body.String())
	}
}
