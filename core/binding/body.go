package binding

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/artpar/modelwire/core/apperr"
	"github.com/artpar/modelwire/core/response"
)

// MaxBodyBytes bounds the request bodies the parser reads.
const MaxBodyBytes = 1 << 20

type bodyKey struct{}

// ParseBody decodes a JSON request body and stores it for Body. An empty
// body decodes to an empty object; malformed JSON is rejected with 400.
func ParseBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body any = map[string]any{}

		if r.Body != nil {
			data, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
			if err != nil {
				response.Error(w, http.StatusBadRequest, apperr.Wrap(apperr.KindValidation, err, "Unable to read request body"))
				return
			}
			if len(data) > MaxBodyBytes {
				response.Error(w, http.StatusRequestEntityTooLarge, apperr.New(apperr.KindValidation, "Request body too large"))
				return
			}
			if len(bytes.TrimSpace(data)) > 0 {
				var decoded any
				if err := json.Unmarshal(data, &decoded); err != nil {
					response.Error(w, http.StatusBadRequest, apperr.Wrap(apperr.KindValidation, err, "Invalid JSON body: "+err.Error()))
					return
				}
				if decoded != nil {
					body = decoded
				}
			}
			r.Body = io.NopCloser(bytes.NewReader(data))
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), bodyKey{}, body)))
	})
}

// Body returns the decoded request body: a map for objects, a slice for
// arrays. Without ParseBody it is an empty object.
func Body(r *http.Request) any {
	if v := r.Context().Value(bodyKey{}); v != nil {
		return v
	}
	return map[string]any{}
}

// BodyObject returns the body when it is an object.
func BodyObject(r *http.Request) (map[string]any, bool) {
	m, ok := Body(r).(map[string]any)
	return m, ok
}
