package commands

import (
	"fmt"
	"time"

	"forarchives/internal/query"

	"github.com/spf13/cobra"
)

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

var (
	subjectQuery             queryFlags
	subjectInBoth            bool
	subjectStemmer           string
	subjectThreadConcurrency int
	subjectThreadDelay       float64
	subjectFormat            string
)

func init() {
	subjectQuery.register(subjectCmd)
	flags := subjectCmd.Flags()
	flags.BoolVar(&subjectInBoth, "in-both", false, "Also take threads whose op text contains the subject.")
	flags.StringVar(&subjectStemmer, "stemmer", "", "Stem plain terms before matching: porter or none.")
	flags.IntVar(&subjectThreadConcurrency, "thread-concurrency", 0, "Threads fetched concurrently, the configured value by default.")
	flags.Float64Var(&subjectThreadDelay, "thread-delay", -1, "Seconds to wait before each thread request, the configured value by default.")
	flags.StringVarP(&subjectFormat, "format", "f", formatText, "Output format: json, text or table.")
	rootCmd.AddCommand(subjectCmd)
}

var subjectCmd = &cobra.Command{
	Use:   "subject <archive> <subject> <search text>",
	Short: "Finds threads by subject and counts the posts in them matching the search text.",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(subjectFormat, formatJSON, formatText, formatTable); err != nil {
			return err
		}
		stemmer, ok := query.StemmerByName(subjectStemmer)
		if !ok {
			return fmt.Errorf("unknown stemmer %q", subjectStemmer)
		}

		sq := engine.SubjectQuery()
		sq.Archive = args[0]
		sq.Subject = args[1]
		sq.SearchText = args[2]
		sq.InBoth = subjectInBoth
		sq.Stemmer = stemmer
		sq.Query = subjectQuery.query(sq.Query)
		if subjectThreadConcurrency > 0 {
			sq.ThreadConcurrency = subjectThreadConcurrency
		}
		if subjectThreadDelay >= 0 {
			sq.ThreadDelay = seconds(subjectThreadDelay)
		}

		result, err := engine.Orchestrator.SearchInSubject(cmd.Context(), sq)
		if err != nil {
			return err
		}
		return writeSubject(cmd.OutOrStdout(), subjectFormat, result)
	},
}
