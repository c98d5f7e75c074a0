package main

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/skill-engine/internal/engine"
	"github.com/sells-group/skill-engine/internal/model"
)

var (
	parseFile        string
	parseConcurrency int
	parseTrace       bool
)

var parseCmd = &cobra.Command{
	Use:   "parse [text]",
	Short: "Parse material descriptions into structured attributes",
	Long:  "Parses a single description given as an argument, or a file of newline-separated descriptions with --file.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		runtime := engine.NewRuntime(st, cfg.Engine.LowConfidenceThreshold)

		if parseFile != "" {
			return parseBatch(cmd, runtime)
		}
		if len(args) == 0 {
			return eris.New("parse: provide a description argument or --file")
		}

		resp, err := runtime.Execute(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "parse")
		}
		return printResponse(cmd, resp)
	},
}

// parseBatch runs every non-empty line of the input file through the engine
// with bounded concurrency, printing one JSON response per line in input
// order.
func parseBatch(cmd *cobra.Command, runtime *engine.Runtime) error {
	f, err := os.Open(parseFile)
	if err != nil {
		return eris.Wrapf(err, "parse: open %s", parseFile)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return eris.Wrapf(err, "parse: read %s", parseFile)
	}

	responses := make([]*model.ParseResponse, len(lines))
	var mu sync.Mutex
	failed := 0

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(parseConcurrency)
	for i, line := range lines {
		g.Go(func() error {
			resp, err := runtime.Execute(ctx, line)
			if err != nil {
				zap.L().Error("parse: line failed", zap.Int("line", i+1), zap.Error(err))
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			responses[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, resp := range responses {
		if resp == nil {
			continue
		}
		out := trimmedResponse(resp)
		if err := enc.Encode(out); err != nil {
			return eris.Wrap(err, "parse: encode response")
		}
	}

	zap.L().Info("parse: batch complete",
		zap.Int("total", len(lines)),
		zap.Int("failed", failed),
	)
	return nil
}

func printResponse(cmd *cobra.Command, resp *model.ParseResponse) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(trimmedResponse(resp)), "parse: encode response")
}

// trimmedResponse drops the stage trace unless --trace is set.
func trimmedResponse(resp *model.ParseResponse) *model.ParseResponse {
	if parseTrace {
		return resp
	}
	out := *resp
	out.Stages = nil
	return &out
}

func init() {
	parseCmd.Flags().StringVar(&parseFile, "file", "", "file of newline-separated descriptions")
	parseCmd.Flags().IntVar(&parseConcurrency, "concurrency", 4, "parallel parses for --file")
	parseCmd.Flags().BoolVar(&parseTrace, "trace", false, "include per-stage execution traces")
	rootCmd.AddCommand(parseCmd)
}
