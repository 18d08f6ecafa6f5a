package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"gapscan/internal/ingest"
	"gapscan/internal/market"
	"gapscan/internal/ops"
	"gapscan/internal/scanner"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (only the scan section is used)")
	input := flag.String("input", "", "JSONL update file to scan")
	asJSON := flag.Bool("json", false, "Print candidates as JSON")
	flag.Parse()

	if err := run(*configPath, *input, *asJSON); err != nil {
		logs.Errorf("scan failed, err: %+v", err)
		os.Exit(1)
	}
}

func run(configPath, input string, asJSON bool) error {
	if input == "" {
		return errors.New("input is required")
	}
	cfg, err := ops.Load(configPath)
	if err != nil {
		return err
	}

	store := market.NewStore()
	src := ingest.NewFileSource(ingest.FileConfig{Path: input})
	in := ingest.New(store, src, ingest.Config{})
	if err := in.Run(context.Background()); err != nil {
		return errors.Wrap(err, "read input").With("path", input)
	}
	stats := in.Stats()
	logs.Infof("loaded %s, applied: %d, dropped: %d, symbols: %d", input, stats.Applied, stats.Dropped, store.Len())

	candidates := scanner.New(store, cfg.Scan.Criteria, scanner.WithQuiet()).Candidates()
	if asJSON {
		data, err := sonic.ConfigStd.MarshalIndent(candidates, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(os.Stdout, string(data))
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tSYMBOL\tPRICE\tGAP\tRVOL\tNEWS\tRUNNER")
	for _, c := range candidates {
		fmt.Fprintf(w, "%d\t%s\t%.2f\t%.2f%%\t%.1fx\t%t\t%t\n",
			c.Rank, c.Symbol, c.Price, c.GapRatio*100, c.RelativeVolume, c.HasNews, c.IsRunner)
	}
	return w.Flush()
}
