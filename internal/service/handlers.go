package service

import (
	"net/http"
	"strconv"

	"forarchives/internal/archive"
	"forarchives/internal/config"
	"forarchives/internal/query"
	"forarchives/internal/search"

	"github.com/go-chi/chi/v5"
)

// QueryRequest holds the search fields shared by both search endpoints.
type QueryRequest struct {
	Board    string `json:"board"`
	Text     string `json:"text"`
	Subject  string `json:"subject"`
	Username string `json:"username"`
	Filename string `json:"filename"`
	DateFrom string `json:"date_from" validate:"omitempty,datetime=2006-01-02"`
	DateTo   string `json:"date_to" validate:"omitempty,datetime=2006-01-02"`
	Type     string `json:"type" validate:"omitempty,oneof=op posts"`

	Page        int              `json:"page" validate:"gte=0"`
	Limit       *int             `json:"limit" validate:"omitempty,gte=0"`
	Concurrency int              `json:"concurrency" validate:"gte=0,lte=20"`
	Delay       *config.Duration `json:"delay"`

	CaseSensitive bool `json:"case_sensitive"`
	WholeWord     bool `json:"whole_word"`
}

func (r QueryRequest) query(defaults archive.Query) archive.Query {
	q := defaults
	q.Board = r.Board
	q.Text = r.Text
	q.Subject = r.Subject
	q.Username = r.Username
	q.Filename = r.Filename
	q.DateFrom = r.DateFrom
	q.DateTo = r.DateTo
	q.Type = r.Type
	q.Page = r.Page
	q.CaseSensitive = r.CaseSensitive
	q.WholeWord = r.WholeWord
	if r.Limit != nil {
		q.Limit = *r.Limit
	}
	if r.Concurrency > 0 {
		q.Concurrency = r.Concurrency
	}
	if r.Delay != nil && r.Delay.Std() >= 0 {
		q.Delay = r.Delay.Std()
	}
	return q
}

type SearchRequest struct {
	QueryRequest
	// Archives are names or registry indexes, empty means every archive.
	Archives []string `json:"archives"`
	// Filter is a query expression the comments of the results must satisfy.
	Filter string `json:"filter"`
}

// Search answers with the flattened posts of every selected archive, each
// tagged with its source archive.
func (s *Service) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := s.decodeValidate(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	q := req.query(s.defaults.Query)
	results, err := s.orchestrator.Search(r.Context(), req.Archives, q)
	if err != nil {
		s.tel.ReportDebug(report_search, err.Error())
		s.writeError(w, err)
		return
	}
	if req.Filter != "" {
		matcher := s.matchers.Compile(req.Filter, query.Options{
			CaseSensitive: q.CaseSensitive,
			WholeWord:     q.WholeWord,
		})
		results = search.FilterResults(results, matcher)
	}
	s.writeJSON(w, http.StatusOK, search.Flatten(results))
}

type SubjectRequest struct {
	QueryRequest
	Archive string `json:"archive" validate:"required"`
	// Subject of QueryRequest is the thread subject searched in stage 1.
	SearchText        string           `json:"search_text" validate:"required"`
	InBoth            bool             `json:"in_both"`
	ThreadConcurrency int              `json:"thread_concurrency" validate:"gte=0,lte=20"`
	ThreadDelay       *config.Duration `json:"thread_delay"`
	Stemmer           string           `json:"stemmer"`
}

func (s *Service) SearchSubject(w http.ResponseWriter, r *http.Request) {
	var req SubjectRequest
	if err := s.decodeValidate(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Subject == "" {
		s.writeError(w, badRequest("subject is required"))
		return
	}
	stemmer, ok := query.StemmerByName(req.Stemmer)
	if !ok {
		s.writeError(w, badRequest("unknown stemmer "+strconv.Quote(req.Stemmer)))
		return
	}

	sq := s.defaults
	sq.Archive = req.Archive
	sq.Subject = req.Subject
	sq.SearchText = req.SearchText
	sq.InBoth = req.InBoth
	sq.Stemmer = stemmer
	sq.Query = req.query(s.defaults.Query)
	if req.ThreadConcurrency > 0 {
		sq.ThreadConcurrency = req.ThreadConcurrency
	}
	if req.ThreadDelay != nil && req.ThreadDelay.Std() >= 0 {
		sq.ThreadDelay = req.ThreadDelay.Std()
	}

	result, err := s.orchestrator.SearchInSubject(r.Context(), sq)
	if err != nil {
		s.tel.ReportDebug(report_subject, err.Error())
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type archiveEntry struct {
	Index int `json:"index"`
	archive.Descriptor
}

func (s *Service) Archives(w http.ResponseWriter, r *http.Request) {
	list := s.orchestrator.Registry().List()
	out := make([]archiveEntry, len(list))
	for i, d := range list {
		out[i] = archiveEntry{Index: i, Descriptor: d}
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Service) Health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"archives": s.orchestrator.Registry().Len(),
	})
}

// lookupParams resolves the archive, board and post number of a lookup route.
func (s *Service) lookupParams(r *http.Request) (archive.Adapter, string, int64, error) {
	_, adapter, err := s.orchestrator.Adapter(chi.URLParam(r, "archive"))
	if err != nil {
		return nil, "", 0, err
	}
	num, err := strconv.ParseInt(chi.URLParam(r, "num"), 10, 64)
	if err != nil || num <= 0 {
		return nil, "", 0, badRequest("num must be a positive integer")
	}
	return adapter, chi.URLParam(r, "board"), num, nil
}

func (s *Service) Thread(w http.ResponseWriter, r *http.Request) {
	adapter, board, num, err := s.lookupParams(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	thread, err := adapter.Thread(r.Context(), board, num)
	if err != nil {
		s.tel.ReportDebug(report_thread, err.Error(), board, num)
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, thread)
}

func (s *Service) Post(w http.ResponseWriter, r *http.Request) {
	adapter, board, num, err := s.lookupParams(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	lookup, ok := adapter.(archive.PostLookup)
	if !ok {
		s.writeError(w, httpError{
			status:  http.StatusNotImplemented,
			message: "archive does not support post lookup",
		})
		return
	}
	post, err := lookup.Post(r.Context(), board, num)
	if err != nil {
		s.tel.ReportDebug(report_post, err.Error(), board, num)
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, post)
}
