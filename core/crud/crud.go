// Package crud provides the route table every model gets by default.
// Keys are relative to the model base path, e.g. "GET /:id" is attached as
// "GET /api/v1/user/{id}".
package crud

import (
	"net/http"

	"github.com/artpar/modelwire/core/apperr"
	"github.com/artpar/modelwire/core/binding"
	"github.com/artpar/modelwire/core/datalayer"
	"github.com/artpar/modelwire/core/query"
	"github.com/artpar/modelwire/core/response"
	"github.com/artpar/modelwire/core/route"
)

// Table is a route table of binding handlers.
type Table = route.Table[binding.HandlerFunc]

// Defaults returns a fresh copy of the default route table.
func Defaults() *Table {
	return route.NewTable(
		route.Entry[binding.HandlerFunc]{Key: "GET /", Handler: find},
		route.Entry[binding.HandlerFunc]{Key: "POST /", Handler: create},
		route.Entry[binding.HandlerFunc]{Key: "PUT /", Handler: updateAll},
		route.Entry[binding.HandlerFunc]{Key: "DELETE /", Handler: destroyAll},
		route.Entry[binding.HandlerFunc]{Key: "GET /count", Handler: count},
		route.Entry[binding.HandlerFunc]{Key: "GET /info", Handler: info},
		route.Entry[binding.HandlerFunc]{Key: "GET /distinct/:field", Handler: distinct},
		route.Entry[binding.HandlerFunc]{Key: "GET /:id", Handler: findOne},
		route.Entry[binding.HandlerFunc]{Key: "POST /:id", Handler: findOrCreate},
		route.Entry[binding.HandlerFunc]{Key: "PUT /:id", Handler: updateOne},
		route.Entry[binding.HandlerFunc]{Key: "DELETE /:id", Handler: destroyOne},
	)
}

// Keys returns the default route keys in order.
func Keys() []string {
	return Defaults().Keys()
}

func find(b *binding.Context, m *datalayer.Collection, w http.ResponseWriter, r *http.Request) {
	q, err := query.Normalize(r.URL.Query())
	if err != nil {
		fail(w, err)
		return
	}

	docs, err := m.Find(r.Context(), q)
	if err != nil {
		fail(w, err)
		return
	}
	response.Write(w, http.StatusOK, docs)
}

func create(b *binding.Context, m *datalayer.Collection, w http.ResponseWriter, r *http.Request) {
	switch body := binding.Body(r).(type) {
	case []any:
		values := make([]query.Record, 0, len(body))
		for _, v := range body {
			rec, ok := v.(map[string]any)
			if !ok {
				fail(w, apperr.New(apperr.KindValidation, "Every element of the body must be an object"))
				return
			}
			values = append(values, rec)
		}
		docs, err := m.CreateEach(r.Context(), values)
		if err != nil {
			fail(w, err)
			return
		}
		response.Write(w, http.StatusCreated, docs)

	case map[string]any:
		doc, err := m.Create(r.Context(), body)
		if err != nil {
			fail(w, err)
			return
		}
		response.Write(w, http.StatusCreated, doc)

	default:
		fail(w, apperr.New(apperr.KindValidation, "No body provided!"))
	}
}

func updateAll(b *binding.Context, m *datalayer.Collection, w http.ResponseWriter, r *http.Request) {
	body, ok := binding.BodyObject(r)
	if !ok || len(body) == 0 {
		fail(w, apperr.New(apperr.KindValidation, "No body provided!"))
		return
	}

	q, err := query.Normalize(r.URL.Query(), query.Unlimited())
	if err != nil {
		fail(w, err)
		return
	}

	docs, err := m.Update(r.Context(), q.Where, body)
	if err != nil {
		fail(w, err)
		return
	}
	response.Write(w, http.StatusOK, map[string]any{"docs_updated": len(docs)})
}

func destroyAll(b *binding.Context, m *datalayer.Collection, w http.ResponseWriter, r *http.Request) {
	q, err := query.Normalize(r.URL.Query(), query.Unlimited())
	if err != nil {
		fail(w, err)
		return
	}

	docs, err := m.Destroy(r.Context(), q.Where)
	if err != nil {
		fail(w, err)
		return
	}
	response.Write(w, http.StatusOK, map[string]any{"docs_removed": len(docs)})
}

func count(b *binding.Context, m *datalayer.Collection, w http.ResponseWriter, r *http.Request) {
	q, err := query.Normalize(r.URL.Query(), query.Unlimited())
	if err != nil {
		fail(w, err)
		return
	}

	n, err := m.Count(r.Context(), q.Where)
	if err != nil {
		fail(w, err)
		return
	}
	response.Write(w, http.StatusOK, map[string]any{"doc_count": n})
}

func info(b *binding.Context, m *datalayer.Collection, w http.ResponseWriter, r *http.Request) {
	response.Write(w, http.StatusOK, map[string]any{
		"name":   m.Name(),
		"schema": m.Schema(),
		"routes": m.Routes(),
	})
}

func distinct(b *binding.Context, m *datalayer.Collection, w http.ResponseWriter, r *http.Request) {
	field := binding.Param(r, "field")

	q, err := query.Normalize(r.URL.Query(), query.Unlimited(), query.WithSelect(field))
	if err != nil {
		fail(w, err)
		return
	}

	docs, err := m.Find(r.Context(), q)
	if err != nil {
		fail(w, err)
		return
	}

	values := make([]any, 0, len(docs))
	for _, doc := range docs {
		v := doc[field]
		seen := false
		for _, existing := range values {
			if query.Equal(existing, v) {
				seen = true
				break
			}
		}
		if !seen {
			values = append(values, v)
		}
	}
	response.Write(w, http.StatusOK, values)
}

func findOne(b *binding.Context, m *datalayer.Collection, w http.ResponseWriter, r *http.Request) {
	doc, ok, err := m.FindByID(r.Context(), m.CoerceID(binding.Param(r, "id")))
	if err != nil {
		fail(w, err)
		return
	}
	if !ok {
		response.Write(w, http.StatusNotFound, nil)
		return
	}
	response.Write(w, http.StatusOK, doc)
}

func findOrCreate(b *binding.Context, m *datalayer.Collection, w http.ResponseWriter, r *http.Request) {
	id := m.CoerceID(binding.Param(r, "id"))

	values := query.Record{}
	if body, ok := binding.BodyObject(r); ok {
		for k, v := range body {
			values[k] = v
		}
	}
	values[m.PrimaryKey()] = id

	doc, err := m.FindOrCreate(r.Context(), []any{id}, values)
	if err != nil {
		fail(w, err)
		return
	}
	response.Write(w, http.StatusOK, doc)
}

func updateOne(b *binding.Context, m *datalayer.Collection, w http.ResponseWriter, r *http.Request) {
	body, _ := binding.BodyObject(r)

	docs, err := m.Update(r.Context(), []any{m.CoerceID(binding.Param(r, "id"))}, body)
	if err != nil {
		fail(w, err)
		return
	}
	if len(docs) == 0 {
		response.Write(w, http.StatusNotFound, nil)
		return
	}
	response.Write(w, http.StatusOK, docs[0])
}

func destroyOne(b *binding.Context, m *datalayer.Collection, w http.ResponseWriter, r *http.Request) {
	docs, err := m.Destroy(r.Context(), []any{m.CoerceID(binding.Param(r, "id"))})
	if err != nil {
		fail(w, err)
		return
	}
	if len(docs) == 0 {
		response.Write(w, http.StatusNotFound, map[string]any{"docs_removed": 0})
		return
	}
	response.Write(w, http.StatusOK, map[string]any{"docs_removed": len(docs)})
}

func fail(w http.ResponseWriter, err error) {
	response.Error(w, http.StatusBadRequest, err)
}
