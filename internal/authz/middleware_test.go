package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequireGatesByMatrix(t *testing.T) {
	e := newEngine(t)
	m := Middleware{Engine: e}

	var stored Decision
	var called bool
	handler := m.Require(KindUsers, ActionRead)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		called = true
		stored, _ = DecisionFromContext(r.Context())
	}))

	serve := func(actor Actor) *httptest.ResponseRecorder {
		called = false
		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		req = req.WithContext(ContextWithActor(req.Context(), actor))
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		return res
	}

	res := serve(Anonymous())
	if res.Code != http.StatusNotFound {
		t.Fatalf("anonymous should bounce with 404, got %d", res.Code)
	}
	if called {
		t.Fatal("handler must not run for a denied request")
	}

	res = serve(Actor{ID: 7, Role: RoleUser, IsActive: true})
	if res.Code != http.StatusOK || !called {
		t.Fatalf("identified user should pass, got %d", res.Code)
	}
	if stored.Filter == nil || stored.Filter.Kind != FilterOwned {
		t.Fatalf("decision with compiled filter should reach the handler, got %+v", stored.Filter)
	}

	res = serve(Actor{ID: 20, Role: RoleAdmin, IsActive: true})
	if res.Code != http.StatusOK {
		t.Fatalf("admin should pass, got %d", res.Code)
	}
}
