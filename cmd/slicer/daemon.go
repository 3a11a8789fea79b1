package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"semantic-slicer/internal/config"
	"semantic-slicer/internal/logger"
	"semantic-slicer/internal/slicer"
)

// maxLineSize bounds a single daemon request.
const maxLineSize = 64 << 20

type daemonRequest struct {
	Content     string         `json:"content"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	ChunkHeader string         `json:"chunkHeader,omitempty"`
}

func newDaemonCmd(cfg config.Config) *cobra.Command {
	var (
		flags sliceFlags
		pipe  string
	)
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Keep a slicer in memory and slice one document per input line",
		Long: "Reads newline-delimited documents from stdin or a named pipe and prints one JSON array of chunks per line. " +
			`A line holding a JSON object {"content", "metadata", "chunkHeader"} is sliced as that request.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := flags.slicer(cfg)
			if err != nil {
				return err
			}
			log := logger.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel)
			d := &daemon{slicer: s, header: flags.header, out: cmd.OutOrStdout(), log: log}

			if pipe != "" {
				log.Info("waiting for writer on named pipe", "pipe", pipe)
				return servePipe(cmd.Context(), pipe, d.run)
			}
			log.Info("reading requests from stdin")
			return d.run(cmd.Context(), cmd.InOrStdin())
		},
	}
	flags.register(cmd.Flags(), cfg)
	cmd.Flags().StringVar(&pipe, "pipe", "", "read from this named pipe instead of stdin (created if missing)")
	return cmd
}

type daemon struct {
	slicer *slicer.Slicer
	header string
	out    io.Writer
	log    *slog.Logger
}

// run slices every non-blank line of in until EOF or ctx is done. A line
// that fails is logged and skipped.
func (d *daemon) run(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	enc := json.NewEncoder(d.out)

	for line := 1; sc.Scan(); line++ {
		if err := ctx.Err(); err != nil {
			return nil
		}
		text := sc.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		req := d.parse(text)
		chunks, err := d.slicer.Slice(req.Content, req.Metadata, req.ChunkHeader)
		if err != nil {
			d.log.Error("failed to slice line", "line", line, "err", err)
			continue
		}
		if err := enc.Encode(chunks); err != nil {
			return err
		}
	}
	return sc.Err()
}

// parse treats a line as a JSON request when it decodes as one, otherwise
// as the document itself.
func (d *daemon) parse(line string) daemonRequest {
	if strings.HasPrefix(strings.TrimSpace(line), "{") {
		var req daemonRequest
		if err := json.Unmarshal([]byte(line), &req); err == nil && req.Content != "" {
			if req.ChunkHeader == "" {
				req.ChunkHeader = d.header
			}
			return req
		}
	}
	return daemonRequest{Content: line, ChunkHeader: d.header}
}
