// Package service exposes the search engine over HTTP/JSON.
package service

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"forarchives/internal/archive"
	"forarchives/internal/components/assert"
	"forarchives/internal/components/telemetry"
	"forarchives/internal/query"
	"forarchives/internal/search"

	"github.com/go-playground/validator/v10"
	"github.com/mazen160/go-random"
)

const (
	report_search         = "service.search"
	report_subject        = "service.subject"
	report_thread         = "service.thread"
	report_post           = "service.post"
	report_request_id     = "service.request-id"
	report_encode_failure = "service.encode"
)

// RandomAPI is an abstraction over any code that potentially generates random values.
//
// note: fault injection point
type RandomAPI interface {
	RequestID() (string, error)
}

type defaultRandomAPI struct{}

func (defaultRandomAPI) RequestID() (string, error) {
	return random.String(12)
}

type Service struct {
	orchestrator search.Orchestrator
	defaults     search.SubjectQuery
	matchers     *query.Cache
	rand         RandomAPI
	validate     *validator.Validate
	tel          telemetry.API
}

type Option func(s *Service)

func WithRandomAPI(r RandomAPI) Option {
	return func(s *Service) {
		s.rand = r
	}
}

// New builds the service. defaults carries the pagination, delay and thread
// settings applied to requests that leave them unset.
func New(
	orchestrator search.Orchestrator,
	defaults search.SubjectQuery,
	matchers *query.Cache,
	tel telemetry.API,
	options ...Option,
) *Service {
	assert.NotNil(matchers)

	s := &Service{
		orchestrator: orchestrator,
		defaults:     defaults,
		matchers:     matchers,
		rand:         defaultRandomAPI{},
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		tel:          telemetry.NewScopedAPI("service", tel),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

type httpError struct {
	status  int
	message string
}

func (e httpError) Error() string {
	return e.message
}

func badRequest(message string) httpError {
	return httpError{status: http.StatusBadRequest, message: message}
}

// statusOf maps domain errors onto response codes.
func statusOf(err error) int {
	var herr httpError
	switch {
	case errors.As(err, &herr):
		return herr.status
	case errors.Is(err, archive.ErrUnknownArchive):
		return http.StatusNotFound
	case errors.Is(err, search.ErrNoAdapter):
		return http.StatusInternalServerError
	}
	return http.StatusBadGateway
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Service) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusOf(err), errorBody{Error: err.Error()})
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		s.tel.ReportBroken(report_encode_failure, err)
	}
}

// decodeValidate reads a json body into v and checks its struct tags.
func (s *Service) decodeValidate(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		slog.Debug("invalid request body", "err", err)
		return badRequest("body is invalid json: " + err.Error())
	}
	if err := s.validate.Struct(v); err != nil {
		return badRequest(err.Error())
	}
	return nil
}
