package foolfuuka

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"forarchives/internal/archive"
	"forarchives/internal/scrapers/transport"
)

// ApiError is a structured error returned by the archive, such as
// "No results found.".
type ApiError struct {
	Message string
}

func (e ApiError) Error() string {
	return fmt.Sprintf("archive error: %s", e.Message)
}

// Unwrap makes api errors protocol errors.
func (e ApiError) Unwrap() error {
	return transport.ErrProtocol
}

func malformed(err error) error {
	return fmt.Errorf("%w: %w", transport.ErrMalformed, err)
}

// checkEnvelope returns an ApiError when the body is an error envelope, an
// object with an "error" key or a "status" of "error".
func checkEnvelope(body []byte) error {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		// arrays and scalars are never error envelopes
		return nil
	}
	if raw, ok := envelope["error"]; ok {
		var message string
		if json.Unmarshal(raw, &message) != nil {
			message = string(raw)
		}
		return ApiError{Message: message}
	}
	if raw, ok := envelope["status"]; ok {
		var status string
		if json.Unmarshal(raw, &status) == nil && status == "error" {
			message := "status error"
			if msg, ok := envelope["message"]; ok {
				_ = json.Unmarshal(msg, &message)
			}
			return ApiError{Message: message}
		}
	}
	return nil
}

type searchEnvelope struct {
	Results struct {
		Posts []json.RawMessage `json:"posts"`
	} `json:"0"`
}

// decodeSearch returns the posts of a search envelope together with the
// number of entries that could not be decoded.
func decodeSearch(body []byte) ([]archive.Post, int, error) {
	var envelope searchEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, 0, malformed(err)
	}
	posts := make([]archive.Post, 0, len(envelope.Results.Posts))
	skipped := 0
	for _, raw := range envelope.Results.Posts {
		post, err := archive.DecodePost(raw)
		if err != nil {
			skipped++
			continue
		}
		posts = append(posts, post)
	}
	return posts, skipped, nil
}

type threadBody struct {
	OP    json.RawMessage `json:"op"`
	Posts json.RawMessage `json:"posts"`
}

// decodeThread decodes `{"<num>": {"op": {...}, "posts": {...}}}` keeping the
// replies in the order the archive listed them.
func decodeThread(body []byte, num int64) (archive.Thread, int, error) {
	var envelope map[string]threadBody
	if err := json.Unmarshal(body, &envelope); err != nil {
		return archive.Thread{}, 0, malformed(err)
	}
	entry, ok := envelope[fmt.Sprint(num)]
	if !ok {
		if len(envelope) != 1 {
			return archive.Thread{}, 0, malformed(fmt.Errorf("thread %d not in response", num))
		}
		for _, only := range envelope {
			entry = only
		}
	}
	if len(entry.OP) == 0 {
		return archive.Thread{}, 0, malformed(fmt.Errorf("thread %d has no op", num))
	}

	op, err := archive.DecodePost(entry.OP)
	if err != nil {
		return archive.Thread{}, 0, malformed(fmt.Errorf("thread %d op: %w", num, err))
	}
	op.OP = true

	rawReplies, err := orderedValues(entry.Posts)
	if err != nil {
		return archive.Thread{}, 0, malformed(err)
	}
	thread := archive.Thread{OP: op, Replies: make([]archive.Post, 0, len(rawReplies))}
	skipped := 0
	for _, raw := range rawReplies {
		reply, err := archive.DecodePost(raw)
		if err != nil {
			skipped++
			continue
		}
		thread.Replies = append(thread.Replies, reply)
	}
	return thread, skipped, nil
}

// orderedValues returns the elements of a json array, or the values of a
// json object in document order.
func orderedValues(data json.RawMessage) ([]json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	if data[0] == '[' {
		var out []json.RawMessage
		err := json.Unmarshal(data, &out)
		return out, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object or array, got %v", tok)
	}

	var out []json.RawMessage
	for dec.More() {
		// key
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return out, nil
}
