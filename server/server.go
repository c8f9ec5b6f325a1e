/*
Package server is the HTTP API of the trust triangle demo. It lets the user
register the schema and the credential definition, issue the credential to
the holder and verify it. Every call is the one exchange run by the
exchange.Coordinator, and it returns when both agents have finished it.
*/
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-triangle/agent/exchange"
	"github.com/findy-network/findy-triangle/agent/utils"
	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	msgBadRequest   = "Bad Request! Invalid input received!"
	msgInternal     = "Internal server error!"
	msgTimeout      = "The agents didn't finish the exchange in time!"
	msgConnected    = "Agent-to-agent connection is up!"
	msgDisconnected = "Agent-to-agent connection is down! Please check server and restart!"
)

type Server struct {
	t   *Triangle
	srv *http.Server
}

type response struct {
	Status  string      `json:"status,omitempty"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func New(port uint, t *Triangle) *Server {
	s := &Server{t: t}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: utils.HTTPReqTimeout,
	}
	return s
}

// Handler returns the routes of the API.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.welcome).Methods(http.MethodGet)
	r.HandleFunc("/version", s.version).Methods(http.MethodGet)
	r.HandleFunc("/connection-status", s.connectionStatus).Methods(http.MethodGet)
	r.HandleFunc("/register-schema-and-credential-definition", s.register).
		Methods(http.MethodPost)
	r.HandleFunc("/issue-credential", s.issue).Methods(http.MethodPost)
	r.HandleFunc("/verify-credential", s.verify).Methods(http.MethodPost)
	r.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer,
		promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

// ListenAndServe blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	glog.V(1).Infoln(utils.Settings.VersionInfo())
	glog.V(1).Infof("HTTP Server on: %s", s.srv.Addr)
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) welcome(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{
		Message: "Welcome to the SSI trust triangle demo app!",
	})
}

func (s *Server) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{
		Message: utils.Settings.VersionInfo(),
		Data:    map[string]string{"version": utils.Version},
	})
}

func (s *Server) connectionStatus(w http.ResponseWriter, _ *http.Request) {
	if s.t.Connected() {
		writeJSON(w, http.StatusOK, response{
			Status:  "connected",
			Message: msgConnected,
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, response{
		Status:  "disconnected",
		Message: msgDisconnected,
	})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput
	if !decode(w, r, &in) {
		return
	}
	glog.V(1).Infoln("registering", in.SchemaName)
	res, err := s.t.Register(in.SchemaName)
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, response{Message: "Registered!", Data: res})
}

func (s *Server) issue(w http.ResponseWriter, r *http.Request) {
	var in IssueInput
	if !decode(w, r, &in) {
		return
	}
	glog.V(1).Infoln("issuing with", in.CredentialDefinitionID)
	res, err := s.t.Issue(r.Context(), in.CredentialDefinitionID, in.holderName())
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Message: "Issued!", Data: res})
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	var in VerifyInput
	if !decode(w, r, &in) {
		return
	}
	glog.V(1).Infoln("verifying with", in.CredentialDefinitionID)
	res, err := s.t.Verify(r.Context(), in.CredentialDefinitionID)
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Message: "Verified!", Data: res})
}

type validator interface {
	Validate() error
}

// decode reads and validates the input. If it fails the 400 response is
// written and false returned.
func decode(w http.ResponseWriter, r *http.Request, in validator) bool {
	if err := json.NewDecoder(r.Body).Decode(in); err != nil {
		return badRequest(w, &ValidationError{Fields: fields{"body": err.Error()}})
	}
	if err := in.Validate(); err != nil {
		glog.V(2).Infoln("bad request:", err)
		return badRequest(w, err)
	}
	return true
}

func badRequest(w http.ResponseWriter, err error) bool {
	var data interface{}
	var ve *ValidationError
	if errors.As(err, &ve) {
		data = ve.Fields
	} else {
		data = map[string]string{"error": err.Error()}
	}
	writeJSON(w, http.StatusBadRequest, response{Message: msgBadRequest, Data: data})
	return false
}

func errorResponse(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, exchange.ErrValidation):
		badRequest(w, err)
	case errors.Is(err, ErrDisconnected):
		glog.Errorln(err)
		writeJSON(w, http.StatusInternalServerError, response{
			Status:  "disconnected",
			Message: msgDisconnected,
		})
	case errors.Is(err, exchange.ErrTimeout):
		glog.Errorln(err)
		writeJSON(w, http.StatusGatewayTimeout, response{Message: msgTimeout})
	default:
		glog.Errorln(err)
		writeJSON(w, http.StatusInternalServerError, response{Message: msgInternal})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(dto.ToJSONBytes(v)); err != nil {
		glog.Warningln("write response:", err)
	}
}
