// -- cmd/crawl.go --
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/harvest-cli/internal/crawl"
	"github.com/xkilldash9x/harvest-cli/internal/fetch"
	"github.com/xkilldash9x/harvest-cli/internal/observability"
)

var crawlMaxURLs int

var crawlCmd = &cobra.Command{
	Use:   "crawl <job.yaml>",
	Short: "Walk a site over plain HTTP and persist content pages.",
	Long: `Crawl walks a site breadth first starting from the job's start_url,
staying on the same site and honoring the job's include/exclude patterns.
Pages matching the content patterns are extracted with the job's schema and
written as markdown plus a JSON metadata sidecar.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()

		job, err := crawl.LoadJob(args[0])
		if err != nil {
			return err
		}

		cfg := appCfg.Fetch
		if crawlMaxURLs > 0 {
			cfg.MaxURLs = crawlMaxURLs
		}

		crawler, err := crawl.New(cfg, job, fetch.New(cfg, logger), appCfg.Output.Directory, logger)
		if err != nil {
			return err
		}

		stats, err := crawler.Run(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "crawl %s: processed=%d saved=%d failed=%d\n",
			job.Name, stats.Processed, stats.Saved, stats.Failed)
		return nil
	},
}

func init() {
	crawlCmd.Flags().IntVar(&crawlMaxURLs, "max-urls", 0, "override the maximum number of pages to visit")
	rootCmd.AddCommand(crawlCmd)
}
