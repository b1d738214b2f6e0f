package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ogero/stremio-speculative/internal"
	"github.com/ogero/stremio-speculative/internal/common"
	"github.com/ogero/stremio-speculative/pkg/yts"
	"github.com/spf13/cobra"
)

var indexBaseURL string

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the torrent index",
	Long:  "Search the torrent index and print the descriptors the addon would build from the results",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		common.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

		query := strings.Join(args, " ")
		searcher := internal.NewTorrentSearcher(yts.NewYTS(strings.TrimRight(indexBaseURL, "/")), nil)

		descriptors := searcher.Search(cmd.Context(), query)
		if len(descriptors) == 0 {
			fmt.Println("No torrents found.")
			return
		}

		for i, d := range descriptors {
			fmt.Printf("%3d  %s\n     %s\n", i+1, d.Name, d.Magnet)
		}
	},
}

func init() {
	searchCmd.Flags().StringVar(&indexBaseURL, "index-url", yts.DefaultBaseURL, "base URL of the YTS compatible torrent index")
	rootCmd.AddCommand(searchCmd)
}
