package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"forarchives/internal/archive"
	"forarchives/internal/query"
	"forarchives/internal/search"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const (
	formatJSON  = "json"
	formatText  = "text"
	formatTable = "table"
	formatStats = "stats"
)

func checkFormat(format string, allowed ...string) error {
	if !slices.Contains(allowed, format) {
		return fmt.Errorf("unknown format %q, expected one of %s", format, strings.Join(allowed, ", "))
	}
	return nil
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func sortedNames(results map[string]search.ArchiveResult) []string {
	return slices.Sorted(maps.Keys(results))
}

// oneLine collapses a comment for table cells.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// writeResults prints grouped search results in the requested format.
// statsText is the expression counted by the stats format.
func writeResults(w io.Writer, format string, results map[string]search.ArchiveResult, statsText string, opts query.Options) error {
	switch format {
	case formatJSON:
		return writeJSON(w, search.Flatten(results))

	case formatText:
		for _, name := range sortedNames(results) {
			result := results[name]
			fmt.Fprintf(w, "== %s /%s/ (%d posts)\n\n", name, result.Board, len(result.Results))
			for _, post := range result.Results {
				fmt.Fprintf(w, "%s\n\n", search.RenderPost(post))
			}
		}
		return nil

	case formatTable:
		t := newTable(w)
		t.AppendHeader(table.Row{"Archive", "Board", "No.", "Date", "Comment"})
		t.SetColumnConfigs([]table.ColumnConfig{
			{Number: 5, WidthMax: 80, Transformer: func(v any) string {
				return text.Trim(oneLine(fmt.Sprint(v)), 80)
			}},
		})
		for _, name := range sortedNames(results) {
			result := results[name]
			for _, post := range result.Results {
				board := post.BoardName()
				if board == archive.AnyBoard {
					board = result.Board
				}
				t.AppendRow(table.Row{name, board, post.Num, search.PostDate(post), post.Comment})
			}
		}
		t.Render()
		return nil

	case formatStats:
		t := newTable(w)
		t.AppendHeader(table.Row{"Archive", "Posts", "Matching", "%", "Mean date", "Boards"})
		for _, name := range sortedNames(results) {
			stats := search.Stats(results[name].Results, statsText, opts)
			mean := ""
			if !stats.MeanTime.IsZero() {
				mean = stats.MeanTime.Format("2006-01-02")
			}
			boards := make([]string, 0, len(stats.PerBoard))
			for _, board := range slices.Sorted(maps.Keys(stats.PerBoard)) {
				boards = append(boards, fmt.Sprintf("%s:%d", board, stats.PerBoard[board]))
			}
			t.AppendRow(table.Row{
				name,
				stats.Total,
				stats.Matching,
				fmt.Sprintf("%.1f", stats.Percentage),
				mean,
				strings.Join(boards, " "),
			})
		}
		t.Render()
		return nil
	}
	return checkFormat(format, formatJSON, formatText, formatTable, formatStats)
}

func writeSubject(w io.Writer, format string, result search.SubjectResult) error {
	switch format {
	case formatJSON:
		return writeJSON(w, result)
	case formatText:
		if len(result.Threads) == 0 {
			fmt.Fprintln(w, "no matching threads")
			return nil
		}
		fmt.Fprintf(w, "%d matches in %d threads\n", result.Summary.TotalMatches, result.Summary.ThreadCount)
		for _, thread := range result.Threads {
			fmt.Fprintf(w, "\n== /%s/ thread %d (%d matches)\n", thread.Board, thread.ThreadID, thread.MatchCount)
			for _, excerpt := range thread.Excerpts {
				fmt.Fprintf(w, "\n%s\n", excerpt)
			}
		}
		return nil
	case formatTable:
		t := newTable(w)
		t.AppendHeader(table.Row{"Board", "Thread", "Matches"})
		for _, thread := range result.Threads {
			t.AppendRow(table.Row{thread.Board, thread.ThreadID, thread.MatchCount})
		}
		t.AppendFooter(table.Row{"", "Total", result.Summary.TotalMatches})
		t.Render()
		return nil
	}
	return checkFormat(format, formatJSON, formatText, formatTable)
}

func writeThread(w io.Writer, format string, thread archive.Thread) error {
	switch format {
	case formatJSON:
		return writeJSON(w, thread)
	case formatText:
		for _, block := range search.RenderThread(thread) {
			fmt.Fprintf(w, "%s\n\n", block)
		}
		return nil
	}
	return checkFormat(format, formatJSON, formatText)
}
