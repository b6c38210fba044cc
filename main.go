// cratemap draws the module tree of a Rust crate as an HTML page, an SVG
// drawing or a TOON item table.
package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	slogctx "github.com/veqryn/slog-context"
	"gitlab.com/tozd/go/errors"

	"github.com/phobologic/cratemap/internal/discover"
	"github.com/phobologic/cratemap/internal/html"
	"github.com/phobologic/cratemap/internal/parse"
	"github.com/phobologic/cratemap/internal/svgdraw"
	"github.com/phobologic/cratemap/internal/toon"
	"github.com/phobologic/cratemap/internal/walk"
)

var version = "dev"

const rootLongDescription = `cratemap walks a Rust crate from its entry file, following every
mod declaration into the files it names, and draws the structs, enums,
functions, impl blocks and modules it finds.

The path argument may be a .rs file, a crate directory or any directory
below a Cargo.toml. It defaults to the current directory.`

// diagram is a renderer that can write its finished output.
type diagram interface {
	walk.Renderer
	Finish(w io.Writer) error
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

// options holds the flags that are not backed by a config key.
type options struct {
	configPath string
	verbose    bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	v := newConfig()
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "cratemap [path]",
		Short:         "Draw the module tree of a Rust crate",
		Long:          rootLongDescription,
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return readConfig(v, opts.configPath)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) > 0 {
				path = args[0]
			}
			return generate(cmd.Context(), v, opts, path, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ./"+configFileName+")")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output")

	flags := cmd.Flags()
	flags.StringP("format", "f", defaultFormat, "output format: html, svg or toon")
	bindFlag(v, flags.Lookup("format"), formatKey)
	flags.StringP("output", "o", "", `output file, "-" for stdout (default diagram.html, diagram.svg or stdout for toon)`)
	bindFlag(v, flags.Lookup("output"), outputKey)
	flags.StringP("name", "n", defaultName, "diagram title")
	bindFlag(v, flags.Lookup("name"), nameKey)
	flags.Bool("include-tests", false, "keep test-only modules and items")
	bindFlag(v, flags.Lookup("include-tests"), includeTestsKey)

	cmd.AddCommand(
		newInitCmd(v, stdout, stderr),
		newCratesCmd(stdout),
		newVersionCmd(stdout),
	)
	return cmd
}

func newRenderer(format, name string) (diagram, error) {
	switch format {
	case formatHTML:
		return html.New(name), nil
	case formatSVG:
		return svgdraw.New(), nil
	case formatTOON:
		return toon.New(name), nil
	}
	return nil, errors.Errorf("unsupported format %q", format)
}

func generate(ctx context.Context, v *viper.Viper, opts *options, path string, stdout, stderr io.Writer) error {
	logger, closer := newLogger(v, stderr, opts.verbose)
	defer closer.Close()
	ctx = slogctx.NewCtx(ctx, logger)

	format := strings.ToLower(strings.TrimSpace(v.GetString(formatKey)))
	r, err := newRenderer(format, v.GetString(nameKey))
	if err != nil {
		return err
	}

	entry, err := discover.Entry(path)
	if err != nil {
		return errors.Errorf("finding entry file: %w", err)
	}
	slogctx.Debug(ctx, "Resolved entry file", "path", entry)

	engine := walk.New(parse.New(), walk.WithIncludeTests(v.GetBool(includeTestsKey)))
	if err := engine.Visit(ctx, entry, r); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := r.Finish(&buf); err != nil {
		return errors.Errorf("rendering %s: %w", format, err)
	}

	output := v.GetString(outputKey)
	if output == "" {
		output = defaultOutputs[format]
	}

	if output == stdoutPath {
		_, err := stdout.Write(buf.Bytes())
		return err
	}

	if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
		return errors.Errorf("writing %s: %w", output, err)
	}
	slogctx.Info(ctx, "Wrote diagram", "path", output, "format", format)
	return nil
}
