// Command slicer cuts documents into token-bounded chunks from the command
// line, either once per invocation or as a line-oriented daemon.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"semantic-slicer/internal/config"
	"semantic-slicer/internal/slicer"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(config.Load()).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// sliceFlags are shared by the root and daemon commands.
type sliceFlags struct {
	overlap    int
	maxTokens  int
	minPercent int
	encoding   string
	separators string
	stripHTML  bool
	header     string
}

func (f *sliceFlags) register(fs *pflag.FlagSet, cfg config.Config) {
	fs.IntVar(&f.overlap, "overlap", cfg.OverlapPercentage, "percentage of the previous chunk repeated at the start of the next (clamped to 0-100)")
	fs.IntVar(&f.maxTokens, "max-tokens", cfg.MaxChunkTokenCount, "maximum tokens per chunk, header included")
	fs.IntVar(&f.minPercent, "min-chunk-percentage", cfg.MinChunkPercentage, "smallest acceptable split half as a percentage of --max-tokens")
	fs.StringVar(&f.encoding, "encoding", cfg.Encoding, "token encoding: cl100k_base, o200k_base, words or any tiktoken name")
	fs.StringVar(&f.separators, "separators", cfg.Separators, "separator set: text or markdown")
	fs.BoolVar(&f.stripHTML, "strip-html", cfg.StripHTML, "flatten HTML input to plain text")
	fs.StringVar(&f.header, "header", "", "header prepended to every chunk")
}

// slicer builds the slicing configuration from cfg and the flags. The
// overlap is clamped here, before the configuration is frozen.
func (f *sliceFlags) slicer(cfg config.Config) (*slicer.Slicer, error) {
	cfg.OverlapPercentage = slicer.ClampPercentage(f.overlap)
	cfg.MaxChunkTokenCount = f.maxTokens
	cfg.MinChunkPercentage = f.minPercent
	cfg.Encoding = f.encoding
	cfg.Separators = f.separators
	cfg.StripHTML = f.stripHTML

	opts, err := cfg.SlicerOptions()
	if err != nil {
		return nil, err
	}
	return slicer.New(opts)
}

func newRootCmd(cfg config.Config) *cobra.Command {
	var flags sliceFlags
	cmd := &cobra.Command{
		Use:           "slicer [file]",
		Short:         "Split a document into token-bounded chunks",
		Long:          "Reads a document from the given file or stdin and prints its chunks as indented JSON.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			if len(args) == 0 && strings.TrimSpace(input) == "" {
				return cmd.Usage()
			}

			s, err := flags.slicer(cfg)
			if err != nil {
				return err
			}
			chunks, err := s.Slice(input, nil, flags.header)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(chunks)
		},
	}
	flags.register(cmd.Flags(), cfg)
	cmd.AddCommand(newDaemonCmd(cfg))
	return cmd
}

func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	return string(b), nil
}
