package archive

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"forarchives/lib/htmlutil"
)

// AnyBoard is the board marker used when a post carries no board descriptor.
const AnyBoard = "_"

var ErrMissingNum = errors.New("post has no num")

type Board struct {
	ShortName string `json:"shortname"`
	Name      string `json:"name,omitempty"`
}

type Media struct {
	Filename  string `json:"media_filename,omitempty"`
	Hash      string `json:"media_hash,omitempty"`
	Link      string `json:"media_link,omitempty"`
	ThumbLink string `json:"thumb_link,omitempty"`
	Width     int64  `json:"media_w,omitempty"`
	Height    int64  `json:"media_h,omitempty"`
	Size      int64  `json:"media_size,omitempty"`
}

// Post is a single archived post. Fields a backend did not provide are left
// zero. Keys without a dedicated field are kept in a read-only side map.
type Post struct {
	Num               int64
	ThreadNum         int64
	OP                bool
	Timestamp         int64
	FourchanDate      string
	Title             string
	Name              string
	Comment           string
	PosterCountryName string
	Board             *Board
	Media             *Media

	extra map[string]any
}

// BoardName returns the board short name, or AnyBoard.
func (p Post) BoardName() string {
	if p.Board == nil || p.Board.ShortName == "" {
		return AnyBoard
	}
	return p.Board.ShortName
}

// Time returns the post timestamp, the zero time when unknown.
func (p Post) Time() time.Time {
	if p.Timestamp == 0 {
		return time.Time{}
	}
	return time.Unix(p.Timestamp, 0).UTC()
}

// Extra returns a backend specific field that has no dedicated struct field.
func (p Post) Extra(key string) (any, bool) {
	v, ok := p.extra[key]
	return v, ok
}

// ExtraKeys returns the sorted keys of the backend specific fields.
func (p Post) ExtraKeys() []string {
	return slices.Sorted(maps.Keys(p.extra))
}

// Fields flattens the post back into a plain record.
func (p Post) Fields() map[string]any {
	out := make(map[string]any, len(p.extra)+12)
	for k, v := range p.extra {
		out[k] = v
	}
	out["num"] = p.Num
	if p.ThreadNum != 0 {
		out["thread_num"] = p.ThreadNum
	}
	out["op"] = p.OP
	if p.Timestamp != 0 {
		out["timestamp"] = p.Timestamp
	}
	setString := func(key, value string) {
		if value != "" {
			out[key] = value
		}
	}
	setString("fourchan_date", p.FourchanDate)
	setString("title", p.Title)
	setString("name", p.Name)
	setString("comment", p.Comment)
	setString("poster_country_name", p.PosterCountryName)
	if p.Board != nil {
		out["board"] = p.Board
	}
	if p.Media != nil {
		out["media"] = p.Media
	}
	return out
}

func (p Post) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Fields())
}

func (p *Post) UnmarshalJSON(data []byte) error {
	post, err := DecodePost(data)
	if err != nil {
		return err
	}
	*p = post
	return nil
}

// DecodePost decodes a single json object into a Post.
func DecodePost(data []byte) (Post, error) {
	fields, err := decodeObject(data)
	if err != nil {
		return Post{}, err
	}
	return PostFromFields(fields)
}

func decodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]any
	err := dec.Decode(&fields)
	if err != nil {
		return nil, err
	}
	return fields, nil
}

var knownFields = map[string]struct{}{
	"num": {}, "thread_num": {}, "op": {}, "timestamp": {}, "fourchan_date": {},
	"title": {}, "name": {}, "comment": {}, "comment_processed": {},
	"poster_country_name": {}, "board": {}, "media": {},
}

// PostFromFields maps a decoded backend object onto a Post. Numbers may be
// json.Number, float64 or decimal strings. Only a missing or unparsable num
// is an error.
func PostFromFields(fields map[string]any) (Post, error) {
	num, ok := asInt(fields["num"])
	if !ok {
		return Post{}, ErrMissingNum
	}

	post := Post{
		Num:               num,
		FourchanDate:      asString(fields["fourchan_date"]),
		Title:             asString(fields["title"]),
		Name:              asString(fields["name"]),
		Comment:           asString(fields["comment"]),
		PosterCountryName: asString(fields["poster_country_name"]),
	}
	post.ThreadNum, _ = asInt(fields["thread_num"])
	post.Timestamp, _ = asInt(fields["timestamp"])
	post.OP = asBool(fields["op"])
	if post.Comment == "" {
		post.Comment = htmlutil.Plaintext(asString(fields["comment_processed"]))
	}

	if board, ok := fields["board"].(map[string]any); ok {
		post.Board = &Board{
			ShortName: asString(board["shortname"]),
			Name:      asString(board["name"]),
		}
	} else if short := asString(fields["board"]); short != "" {
		post.Board = &Board{ShortName: short}
	}

	if media, ok := fields["media"].(map[string]any); ok {
		m := &Media{
			Filename:  asString(media["media_filename"]),
			Hash:      asString(media["media_hash"]),
			Link:      asString(media["media_link"]),
			ThumbLink: asString(media["thumb_link"]),
		}
		m.Width, _ = asInt(media["media_w"])
		m.Height, _ = asInt(media["media_h"])
		m.Size, _ = asInt(media["media_size"])
		if m.Link == "" {
			m.Link = asString(media["remote_media_link"])
		}
		post.Media = m
	}

	for k, v := range fields {
		if _, known := knownFields[k]; known || v == nil {
			continue
		}
		if post.extra == nil {
			post.extra = make(map[string]any)
		}
		post.extra[k] = v
	}
	return post, nil
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func asInt(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		n, err := t.Int64()
		if err == nil {
			return n, true
		}
		f, err := t.Float64()
		return int64(f), err == nil
	case float64:
		return int64(t), true
	case int64:
		return t, true
	case int:
		return int64(t), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "1" || strings.EqualFold(t, "true")
	default:
		n, ok := asInt(v)
		return ok && n != 0
	}
}
