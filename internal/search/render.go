package search

import (
	"strconv"
	"strings"

	"forarchives/internal/archive"
)

const dateLayout = "2006-01-02 15:04:05"

// PostDate is the archive provided date string, or the UTC timestamp.
func PostDate(p archive.Post) string {
	if p.FourchanDate != "" {
		return p.FourchanDate
	}
	if p.Timestamp == 0 {
		return ""
	}
	return p.Time().Format(dateLayout)
}

// RenderPost renders a post as a text block:
//
//	[title]
//	<num> <date> [country]
//	<comment>
func RenderPost(p archive.Post) string {
	var b strings.Builder
	if p.Title != "" {
		b.WriteString(p.Title)
		b.WriteByte('\n')
	}
	b.WriteString(strconv.FormatInt(p.Num, 10))
	if date := PostDate(p); date != "" {
		b.WriteByte(' ')
		b.WriteString(date)
	}
	if p.PosterCountryName != "" {
		b.WriteByte(' ')
		b.WriteString(p.PosterCountryName)
	}
	b.WriteByte('\n')
	b.WriteString(p.Comment)
	return strings.TrimSpace(b.String())
}

// RenderThread renders every post of a thread, dropping empty blocks.
func RenderThread(t archive.Thread) []string {
	var blocks []string
	for _, p := range t.Posts() {
		if block := RenderPost(p); block != "" {
			blocks = append(blocks, block)
		}
	}
	return blocks
}
