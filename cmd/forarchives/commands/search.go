package commands

import (
	"strings"

	"forarchives/internal/archive"
	"forarchives/internal/query"
	"forarchives/internal/search"

	"github.com/spf13/cobra"
)

// queryFlags are the search flags shared by search and subject.
type queryFlags struct {
	board         string
	username      string
	filename      string
	dateFrom      string
	dateTo        string
	postType      string
	page          int
	limit         int
	concurrency   int
	delay         float64
	caseSensitive bool
	wholeWord     bool
}

func (f *queryFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.board, "board", "b", "", "Board to search, all boards by default.")
	flags.StringVar(&f.username, "username", "", "Only posts by this poster name.")
	flags.StringVar(&f.filename, "filename", "", "Only posts whose attachment has this file name.")
	flags.StringVar(&f.dateFrom, "from", "", "Earliest post date, YYYY-MM-DD.")
	flags.StringVar(&f.dateTo, "to", "", "Latest post date, YYYY-MM-DD.")
	flags.StringVar(&f.postType, "type", "", "Post type filter, e.g. op.")
	flags.IntVar(&f.page, "page", 1, "First result page.")
	flags.IntVarP(&f.limit, "limit", "l", -1, "Maximum number of posts per archive, the configured limit by default.")
	flags.IntVar(&f.concurrency, "concurrency", 0, "Pages fetched concurrently per round, the configured value by default.")
	flags.Float64Var(&f.delay, "delay", -1, "Seconds to wait between rounds, the configured value by default.")
	flags.BoolVar(&f.caseSensitive, "case-sensitive", false, "Match case when filtering.")
	flags.BoolVarP(&f.wholeWord, "whole-word", "w", false, "Only match whole words when filtering.")
}

func (f *queryFlags) query(defaults archive.Query) archive.Query {
	q := defaults
	q.Board = f.board
	q.Username = f.username
	q.Filename = f.filename
	q.DateFrom = f.dateFrom
	q.DateTo = f.dateTo
	q.Type = f.postType
	q.Page = f.page
	q.CaseSensitive = f.caseSensitive
	q.WholeWord = f.wholeWord
	if f.limit >= 0 {
		q.Limit = f.limit
	}
	if f.concurrency > 0 {
		q.Concurrency = f.concurrency
	}
	if f.delay >= 0 {
		q.Delay = seconds(f.delay)
	}
	return q
}

var (
	searchQuery    queryFlags
	searchArchives []string
	searchSubject  string
	searchFilter   string
	searchFormat   string
)

func init() {
	searchQuery.register(searchCmd)
	searchCmd.Flags().StringSliceVarP(&searchArchives, "archive", "a", nil, "Archive names or indexes, every archive by default.")
	searchCmd.Flags().StringVarP(&searchSubject, "subject", "s", "", "Thread subject to search.")
	searchCmd.Flags().StringVar(&searchFilter, "filter", "", "Query expression the comments of the results must satisfy.")
	searchCmd.Flags().StringVarP(&searchFormat, "format", "f", formatText, "Output format: json, text, table or stats.")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search [text...]",
	Short: "Searches the selected archives and prints the posts found.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(searchFormat, formatJSON, formatText, formatTable, formatStats); err != nil {
			return err
		}

		q := searchQuery.query(engine.Query())
		q.Text = strings.Join(args, " ")
		q.Subject = searchSubject

		results, err := engine.Orchestrator.Search(cmd.Context(), searchArchives, q)
		if err != nil {
			return err
		}

		opts := query.Options{CaseSensitive: q.CaseSensitive, WholeWord: q.WholeWord}
		if searchFilter != "" {
			results = search.FilterResults(results, engine.Matchers.Compile(searchFilter, opts))
		}
		statsText := searchFilter
		if statsText == "" {
			statsText = q.Text
		}
		return writeResults(cmd.OutOrStdout(), searchFormat, results, statsText, opts)
	},
}
