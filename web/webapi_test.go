package web

import (
	nethttp "net/http"
	"strings"
	"testing"

	"github.com/freekieb7/embedio/http"
	"github.com/freekieb7/embedio/test"
)

type person struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type peopleController struct{}

func (peopleController) Routes() []Route {
	return []Route{
		{Verb: "GET", Pattern: "/people/{id?}", Handler: func(ctx *http.Context, params Params) Result {
			id, ok := params.Get("id")
			if !ok {
				return Success([]person{{ID: "1", Name: "Ada"}, {ID: "2", Name: "Alan"}})
			}
			if id == "404" {
				return Failure(http.StatusNotFound, "no such person")
			}
			return Success(person{ID: id, Name: "Ada"})
		}},
		{Verb: "DELETE", Pattern: "/people/{id}", Handler: func(ctx *http.Context, params Params) Result {
			return Success(nil)
		}},
		{Verb: "GET", Pattern: "/strict/{id}", Handler: func(ctx *http.Context, params Params) Result {
			return Success("strict " + params.Value("id"))
		}},
		{Verb: "GET", Pattern: "/first/{x}", Handler: func(ctx *http.Context, params Params) Result {
			return Success("first")
		}},
		{Verb: "GET", Pattern: "/first/{y}", Handler: func(ctx *http.Context, params Params) Result {
			return Success("second")
		}},
	}
}

func newAPIServer(t *testing.T) string {
	t.Helper()

	s, base := newTestServer(t)
	s.WithWebAPI("/api/", peopleController{})
	s.WithAction("/api/", "", func(ctx *http.Context) error {
		ctx.SetHandled()
		return ctx.Response.WithText("fallback " + ctx.Route.SubPath)
	})
	run(t, s)
	return base
}

func TestWebAPIOptionalParameter(t *testing.T) {
	base := newAPIServer(t)

	resp, body := get(t, base+"/api/people/", nil)
	test.AssertEqual(t, nethttp.StatusOK, resp.StatusCode)
	test.AssertTrue(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json"), "expected JSON")
	test.AssertEqual(t, `[{"id":"1","name":"Ada"},{"id":"2","name":"Alan"}]`, body)

	_, body = get(t, base+"/api/people/42", nil)
	test.AssertEqual(t, `{"id":"42","name":"Ada"}`, body)
}

func TestWebAPIRequiredParameterFallsThrough(t *testing.T) {
	base := newAPIServer(t)

	_, body := get(t, base+"/api/strict/", nil)
	test.AssertEqual(t, "fallback /strict/", body)

	_, body = get(t, base+"/api/strict/9", nil)
	test.AssertEqual(t, "strict 9", body)
}

func TestWebAPIFirstRouteWins(t *testing.T) {
	base := newAPIServer(t)

	_, body := get(t, base+"/api/first/z", nil)
	test.AssertEqual(t, "first", body)
}

func TestWebAPIResults(t *testing.T) {
	base := newAPIServer(t)

	resp, body := get(t, base+"/api/people/404", nil)
	test.AssertEqual(t, nethttp.StatusNotFound, resp.StatusCode)
	test.AssertEqual(t, "no such person", decodeError(t, body).Message)

	resp, body = do(t, "DELETE", base+"/api/people/3", nil)
	test.AssertEqual(t, nethttp.StatusNoContent, resp.StatusCode)
	test.AssertEqual(t, "", body)
}

func TestWebAPIMethodNotAllowed(t *testing.T) {
	base := newAPIServer(t)

	resp, _ := do(t, "PUT", base+"/api/people/3", nil)
	test.AssertEqual(t, nethttp.StatusMethodNotAllowed, resp.StatusCode)
	test.AssertEqual(t, "GET, DELETE", resp.Header.Get("Allow"))
}

func TestWebAPIRejectsInvalidPattern(t *testing.T) {
	m := NewWebAPIModule("/api")
	test.AssertEqual(t, "/api/", m.BaseRoute())
	test.AssertTrue(t, !m.IsFinalHandler(), "unmatched paths fall through")

	err := m.Handle("GET", "/bad/{", func(*http.Context, Params) Result { return Success(nil) })
	test.AssertErrorIs(t, err, ErrInvalidRoute)
}
