package main

import (
	"bufio"
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gapscan/internal/mdg"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

func main() {
	out := flag.String("out", "", "Output JSONL file (default: stdout)")
	appendOut := flag.Bool("append", false, "Append to the output file instead of truncating it")
	symbols := flag.String("symbols", "ABC,DEF,GHI,JKL,MNO,PQR,STU,XYZ", "Comma separated symbols")
	count := flag.Int("count", 100, "Number of lines to generate (0=until interrupted)")
	interval := flag.Duration("interval", 0, "Delay between lines")
	seed := flag.Uint64("seed", 1, "Random seed")
	gappers := flag.Float64("gapper-rate", 0.25, "Share of symbols that gap up")
	malformed := flag.Float64("malformed-rate", 0, "Share of malformed lines")
	flag.Parse()

	cfg := mdg.Config{
		Symbols:       splitSymbols(*symbols),
		Seed:          *seed,
		GapperRate:    *gappers,
		MalformedRate: *malformed,
	}
	if err := run(cfg, *out, *appendOut, *count, *interval); err != nil {
		logs.Errorf("mdg failed, err: %+v", err)
		os.Exit(1)
	}
}

func run(cfg mdg.Config, out string, appendOut bool, count int, interval time.Duration) error {
	if count < 0 {
		return errors.Errorf("count must be >= 0, got %d", count)
	}
	gen, err := mdg.NewGenerator(cfg)
	if err != nil {
		return err
	}

	file := os.Stdout
	if out != "" {
		flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
		if appendOut {
			flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		}
		file, err = os.OpenFile(out, flags, 0o644)
		if err != nil {
			return errors.Wrap(err, "open output").With("path", out)
		}
		defer file.Close()
	}
	w := bufio.NewWriter(file)
	defer w.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for i := 0; count == 0 || i < count; i++ {
		if ctx.Err() != nil {
			return nil
		}
		line, err := gen.Next()
		if err != nil {
			return err
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return err
		}
		if interval <= 0 {
			continue
		}
		// lines must reach a tailing reader while paced
		if err := w.Flush(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
	return nil
}

func splitSymbols(raw string) []string {
	var symbols []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, strings.ToUpper(s))
		}
	}
	return symbols
}
