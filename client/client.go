/*
Package client is the HTTP client of the trust triangle demo API. The CLI uses
it to call the running server.
*/
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-triangle/agent/utils"
	"github.com/findy-network/findy-triangle/server"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// Error is the API's error reply.
type Error struct {
	StatusCode int
	Status     string          `json:"status"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
}

func (e *Error) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("%d %s %s", e.StatusCode, e.Message, e.Data)
	}
	return fmt.Sprintf("%d %s", e.StatusCode, e.Message)
}

type reply struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// New returns the client for the server at the base URL. The timeout of the
// client must cover the exchange timeout of the server.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP: &http.Client{
			Timeout: utils.Settings.ExchangeTimeout() + utils.Settings.Timeout(),
		},
	}
}

// Status returns the status message of the agent-to-agent connection.
func (c *Client) Status(ctx context.Context) (status string, err error) {
	defer err2.Handle(&err, "status")

	r := try.To1(c.do(ctx, http.MethodGet, "/connection-status", nil))
	return r.Status + ": " + r.Message, nil
}

func (c *Client) Version(ctx context.Context) (v string, err error) {
	defer err2.Handle(&err, "version")

	r := try.To1(c.do(ctx, http.MethodGet, "/version", nil))
	return r.Message, nil
}

func (c *Client) Register(ctx context.Context, schemaName string) (res *server.Registration, err error) {
	defer err2.Handle(&err, "register")

	r := try.To1(c.do(ctx, http.MethodPost, "/register-schema-and-credential-definition",
		server.RegisterInput{SchemaName: schemaName}))
	res = new(server.Registration)
	try.To(json.Unmarshal(r.Data, res))
	return res, nil
}

// Issue issues the credential. Empty holder name means the server's default.
func (c *Client) Issue(ctx context.Context, credDefID, holderName string) (res *server.Issuance, err error) {
	defer err2.Handle(&err, "issue")

	in := server.IssueInput{CredentialDefinitionID: credDefID}
	if holderName != "" {
		in.HolderName = &holderName
	}
	r := try.To1(c.do(ctx, http.MethodPost, "/issue-credential", in))
	res = new(server.Issuance)
	try.To(json.Unmarshal(r.Data, res))
	return res, nil
}

func (c *Client) Verify(ctx context.Context, credDefID string) (res *server.Verification, err error) {
	defer err2.Handle(&err, "verify")

	r := try.To1(c.do(ctx, http.MethodPost, "/verify-credential",
		server.VerifyInput{CredentialDefinitionID: credDefID}))
	res = new(server.Verification)
	try.To(json.Unmarshal(r.Data, res))
	return res, nil
}

func (c *Client) do(ctx context.Context, method, path string, in interface{}) (r *reply, err error) {
	defer err2.Handle(&err)

	var body io.Reader
	if in != nil {
		body = bytes.NewReader(dto.ToJSONBytes(in))
	}
	req := try.To1(http.NewRequestWithContext(ctx, method, c.BaseURL+path, body))
	req.Header.Set("Content-Type", "application/json")

	glog.V(3).Infoln(method, req.URL)
	resp := try.To1(c.HTTP.Do(req))
	defer resp.Body.Close()

	data := try.To1(io.ReadAll(resp.Body))
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &Error{StatusCode: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil {
			apiErr.Message = string(data)
		}
		return nil, apiErr
	}
	r = new(reply)
	try.To(json.Unmarshal(data, r))
	return r, nil
}
