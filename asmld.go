package main

import (
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/ksco/asmld/pkg/config"
	"github.com/ksco/asmld/pkg/linker"
	"github.com/ksco/asmld/pkg/memory"
	"github.com/ksco/asmld/pkg/utils"
)

var version = "dev"

type options struct {
	config       string
	memory       string
	base         string
	offset       string
	limit        string
	sections     []string
	allowMissing bool
	output       string
	summary      bool
	verbose      bool
	inputs       []string
}

func newApp(opts *options) *kingpin.Application {
	app := kingpin.New("asmld", "Static linker for ASMDATA1 object files.")
	app.Version(version)
	app.HelpFlag.Short('h')

	app.Flag("config", "YAML layout file.").Short('c').StringVar(&opts.config)
	app.Flag("memory", "Target memory size, e.g. 1MB or 0x100000.").PlaceHolder("SIZE").StringVar(&opts.memory)
	app.Flag("base", "Address of the first byte of target memory.").PlaceHolder("ADDR").StringVar(&opts.base)
	app.Flag("offset", "First address written to the output image.").PlaceHolder("ADDR").StringVar(&opts.offset)
	app.Flag("limit", "Address past the last byte written to the output image.").PlaceHolder("ADDR").StringVar(&opts.limit)
	app.Flag("section", "Output section as name:offset[:perm[:align]]. Repeatable.").StringsVar(&opts.sections)
	app.Flag("allow-missing", "Leave references to undefined symbols unpatched.").BoolVar(&opts.allowMissing)
	app.Flag("output", "Write the linked image to this file.").Short('o').StringVar(&opts.output)
	app.Flag("summary", "Print output sections and global symbols.").BoolVar(&opts.summary)
	app.Flag("verbose", "Enable verbose logging.").Short('v').Default("false").BoolVar(&opts.verbose)
	app.Arg("libraries", "Object files or archives to link.").StringsVar(&opts.inputs)
	return app
}

func main() {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	utils.MustNo(run(afero.NewOsFs(), os.Args[1:], os.Stdout, logger))
}

func run(fs afero.Fs, args []string, stdout io.Writer, logger log.Logger) error {
	var opts options
	app := newApp(&opts)
	app.UsageWriter(stdout)

	// --help and --version finish the run instead of exiting the process.
	var terminated bool
	app.Terminate(func(int) { terminated = true })
	_, err := app.Parse(args)
	if terminated {
		return nil
	}
	if err != nil {
		return err
	}

	if !opts.verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	layout, err := loadLayout(fs, &opts)
	if err != nil {
		return err
	}
	if len(layout.Inputs) == 0 {
		return errors.New("no input files")
	}

	ctx, err := link(fs, layout, logger)
	if err != nil {
		return err
	}

	start, end := layout.OutputRange()
	image, err := ctx.ReadTarget(start, end)
	if err != nil {
		return errors.Wrap(err, "reading image")
	}

	if layout.Output.Path != "" {
		if err := afero.WriteFile(fs, layout.Output.Path, image, 0o644); err != nil {
			return errors.Wrapf(err, "writing %s", layout.Output.Path)
		}
		level.Info(logger).Log("msg", "wrote image", "path", layout.Output.Path,
			"start", fmt.Sprintf("%#x", start), "size", humanize.IBytes(uint64(len(image))))
	}

	if opts.summary {
		printSummary(stdout, ctx, start, image)
	}
	return nil
}

// loadLayout reads the layout file, if any, and applies command line
// overrides on top of it.
func loadLayout(fs afero.Fs, opts *options) (*config.Layout, error) {
	layout := config.Default()
	if opts.config != "" {
		var err error
		if layout, err = config.Load(fs, opts.config); err != nil {
			return nil, err
		}
	}

	sizes := []struct {
		flag string
		val  string
		dst  *config.Size
	}{
		{"memory", opts.memory, &layout.Memory.Size},
		{"base", opts.base, &layout.Memory.Base},
		{"offset", opts.offset, &layout.Output.Offset},
		{"limit", opts.limit, &layout.Output.Limit},
	}
	for _, s := range sizes {
		if s.val == "" {
			continue
		}
		v, err := config.ParseSize(s.val)
		if err != nil {
			return nil, errors.Wrapf(err, "--%s", s.flag)
		}
		*s.dst = config.Size(v)
	}

	for _, arg := range opts.sections {
		sec, err := config.ParseSection(arg)
		if err != nil {
			return nil, errors.Wrap(err, "--section")
		}
		layout.Sections = append(layout.Sections, sec)
	}

	if opts.output != "" {
		layout.Output.Path = opts.output
	}
	layout.AllowMissing = layout.AllowMissing || opts.allowMissing
	layout.Inputs = append(layout.Inputs, opts.inputs...)

	if err := layout.Validate(); err != nil {
		return nil, err
	}
	return layout, nil
}

// link builds the target memory described by layout and links every input
// into it. A non-zero base maps the memory through a window.
func link(fs afero.Fs, layout *config.Layout, logger log.Logger) (*linker.Context, error) {
	flat := memory.NewFlat(int(layout.Memory.Size))
	var target memory.Space = flat
	if layout.Memory.Base != 0 {
		target = memory.NewWindow(flat, uint64(layout.Memory.Base), 0, uint64(layout.Memory.Size))
	}

	ctx := linker.NewContext(target, logger)
	if err := layout.Apply(ctx); err != nil {
		return nil, err
	}
	if err := linker.ReadInputFiles(ctx, fs, layout.Inputs); err != nil {
		return nil, err
	}
	if err := ctx.Link(layout.AllowMissing); err != nil {
		return nil, err
	}

	level.Info(logger).Log("msg", "linked", "libraries", len(ctx.Libs),
		"sections", len(ctx.OutputSections), "symbols", len(ctx.SymbolMap))
	return ctx, nil
}

func printSummary(w io.Writer, ctx *linker.Context, start uint64, image []byte) {
	fmt.Fprintf(w, "image: %#x-%#x (%s) xxhash64=%016x\n",
		start, start+uint64(len(image)), humanize.IBytes(uint64(len(image))), xxhash.Sum64(image))

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Section", "Offset", "End", "Size", "Align", "Perm", "Parts"})
	table.AppendBulk(lo.Map(ctx.SortedOutputSections(), func(osec *linker.OutputSection, _ int) []string {
		return []string{
			osec.Name,
			fmt.Sprintf("%#x", osec.Offset),
			fmt.Sprintf("%#x", osec.End()),
			humanize.IBytes(osec.Size),
			fmt.Sprintf("%d", osec.Align),
			osec.Perm.String(),
			fmt.Sprintf("%d", len(osec.Parts)),
		}
	}))
	table.Render()

	table = tablewriter.NewWriter(w)
	table.SetHeader([]string{"Symbol", "Address", "Section", "Library"})
	table.AppendBulk(lo.Map(ctx.GlobalSymbols(), func(sym *linker.Symbol, _ int) []string {
		return []string{
			sym.Name(),
			fmt.Sprintf("%#x", sym.Addr),
			sym.Part.OutputSection.Name,
			sym.Lib.File.Name,
		}
	}))
	table.Render()
}
