package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"

	apperrors "github.com/enroll/queue-server-go/internal/errors"
	"github.com/enroll/queue-server-go/internal/httputil"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

type messageResponse struct {
	Message string `json:"message"`
}

type settingResponse struct {
	Value int `json:"value"`
}

// requestFields reads the body as a JSON object or an urlencoded form. Form
// values come back as JSON strings so callers decode both the same way.
func requestFields(r *http.Request) (map[string]json.RawMessage, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, apperrors.ValidationError("Invalid request body").WithCause(err)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, apperrors.ValidationError("Invalid form body").WithCause(err)
		}
		fields := make(map[string]json.RawMessage, len(values))
		for key := range values {
			raw, _ := json.Marshal(values.Get(key))
			fields[key] = raw
		}
		return fields, nil
	}

	fields := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(body)) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, apperrors.ValidationError("Invalid JSON body").WithCause(err)
	}
	return fields, nil
}

// stringField returns fields[name] when it is a JSON string, else "".
func stringField(fields map[string]json.RawMessage, name string) string {
	var s string
	if raw, ok := fields[name]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}
