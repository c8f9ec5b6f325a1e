package trans

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-triangle/agent/didcomm"
	"github.com/findy-network/findy-triangle/agent/utils"
	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// errorMessageMaxLength is the maximum length of the response body we will
// include into the generated error message
const errorMessageMaxLength = 80

const defaultMaxRetries = 3

// HTTP is the outbound transport. Failed sends are retried with exponential
// backoff, but 4xx answers are permanent.
type HTTP struct {
	Client     *http.Client
	MaxRetries uint64
}

func NewHTTP() *HTTP {
	return &HTTP{
		Client:     &http.Client{},
		MaxRetries: defaultMaxRetries,
	}
}

func (h *HTTP) Send(ctx context.Context, endpoint string, msg *didcomm.Message) (err error) {
	defer err2.Handle(&err, "http send %s", msg.Type)

	data := dto.ToJSONBytes(msg)
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), h.MaxRetries),
		ctx)
	return backoff.RetryNotify(func() error {
		return h.post(ctx, endpoint, data)
	}, b, func(err error, d time.Duration) {
		glog.Warningf("send to %s failed, retry in %v: %v", endpoint, d, err)
	})
}

func (h *HTTP) post(ctx context.Context, urlStr string, data []byte) (err error) {
	defer err2.Handle(&err, "call http")

	URL := try.To1(url.Parse(urlStr))

	ctx, cancel := context.WithTimeout(ctx, utils.Settings.Timeout())
	defer cancel()

	request := try.To1(http.NewRequestWithContext(ctx, http.MethodPost,
		URL.String(), bytes.NewReader(data)))
	request.Close = true // deferred response.Body.Close isn't always enough
	request.Header.Set("Content-Type", contentType)

	response := try.To1(h.Client.Do(request))
	defer func() {
		closeErr := response.Body.Close()
		if closeErr != nil {
			glog.Warningln("body.Close: ", closeErr)
		}
	}()

	body := try.To1(io.ReadAll(response.Body))
	return checkHTTPStatus(response, body)
}

// checkHTTPStatus checks the status code and gets the server message
func checkHTTPStatus(response *http.Response, data []byte) error {
	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return nil
	}
	glog.Warning("http code:", response.Status)
	var err error
	contentType := response.Header.Get("Content-type")
	// from our server: text/plain; charset=utf-8
	if strings.HasPrefix(contentType, "text/plain") {
		err = fmt.Errorf("%s: %s",
			response.Status, data[0:min(errorMessageMaxLength, len(data))])
	} else {
		err = errors.New(response.Status)
	}
	if response.StatusCode >= 400 && response.StatusCode < 500 {
		return backoff.Permanent(err)
	}
	return err
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Server is the inbound HTTP transport of the one agent.
type Server struct {
	srv  *http.Server
	rcvr Receiver
}

func NewServer(port uint, rcvr Receiver) *Server {
	s := &Server{rcvr: rcvr}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.inbound).Methods(http.MethodPost)
	return r
}

// ListenAndServe blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	glog.V(1).Infoln("inbound transport on", s.srv.Addr)
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) inbound(w http.ResponseWriter, r *http.Request) {
	defer err2.Catch(err2.Err(func(err error) {
		glog.Error("inbound error:", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
	}))

	data := try.To1(io.ReadAll(r.Body))
	msg := new(didcomm.Message)
	try.To(json.Unmarshal(data, msg))

	glog.V(3).Infof("===== inbound %s from %s", msg.Type, msg.From)
	try.To(s.rcvr.Receive(msg))
	w.WriteHeader(http.StatusAccepted)
}
