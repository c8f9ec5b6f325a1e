package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/findy-network/findy-triangle/server"
	"github.com/lainio/err2/assert"
)

func newTestServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/connection-status", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":"disconnected","message":"down"}`))
	})
	mux.HandleFunc("/register-schema-and-credential-definition",
		func(w http.ResponseWriter, r *http.Request) {
			var in server.RegisterInput
			data, _ := io.ReadAll(r.Body)
			if json.Unmarshal(data, &in) != nil || in.SchemaName != "foo" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"message":"bad","data":{"schemaName":"x"}}`))
				return
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"message":"Registered!","data":` +
				`{"schemaId":"s1","credentialDefinitionId":"cd1"}}`))
		})
	mux.HandleFunc("/issue-credential", func(w http.ResponseWriter, r *http.Request) {
		var in server.IssueInput
		data, _ := io.ReadAll(r.Body)
		if json.Unmarshal(data, &in) != nil || in.HolderName == nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"message":"Issued!","data":` +
			`{"credentialId":"c1","holderState":"Done"}}`))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestClient(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	ts := newTestServer(t)
	c := New(ts.URL)
	ctx := context.Background()

	reg, err := c.Register(ctx, "foo")
	assert.NoError(err)
	assert.Equal(reg.CredentialDefinitionID, "cd1")

	_, err = c.Register(ctx, "bar")
	var apiErr *Error
	assert.That(errors.As(err, &apiErr))
	assert.Equal(apiErr.StatusCode, http.StatusBadRequest)

	is, err := c.Issue(ctx, "cd1", "Alice")
	assert.NoError(err)
	assert.Equal(is.CredentialID, "c1")

	_, err = c.Issue(ctx, "cd1", "")
	assert.Error(err)

	_, err = c.Status(ctx)
	assert.That(errors.As(err, &apiErr))
	assert.Equal(apiErr.Status, "disconnected")
}
