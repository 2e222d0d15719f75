// plfli CLI - inspect the runtime configuration, convert JSON documents to
// terms and manage the persistent record store.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/plfli/config"
	"github.com/chazu/plfli/engine"
	"github.com/chazu/plfli/jsonterm"
	"github.com/chazu/plfli/store"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// cli carries the global flags and streams shared by the subcommands.
type cli struct {
	cfg    *config.Config
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("plfli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbosity := fs.Int("v", -1, "Log verbosity (overrides [log] verbosity)")
	configDir := fs.String("C", ".", "Directory to search upwards for plfli.toml")
	dbPath := fs.String("db", "", "Record database path (overrides [store] path)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: plfli [options] <command> [args...]\n\n")
		fmt.Fprintf(stderr, "Commands:\n")
		fmt.Fprintf(stderr, "  info                      Show configuration and engine statistics\n")
		fmt.Fprintf(stderr, "  json [-tag t] [-atoms] [file]\n")
		fmt.Fprintf(stderr, "                            Convert a JSON document (default stdin) to a term\n")
		fmt.Fprintf(stderr, "  record put <key> [file]   Store a JSON document as a record\n")
		fmt.Fprintf(stderr, "  record get [-json] <key>  Print a stored record\n")
		fmt.Fprintf(stderr, "  record list               List stored records\n")
		fmt.Fprintf(stderr, "  record delete <key>       Remove a stored record\n")
		fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  plfli info\n")
		fmt.Fprintf(stderr, "  echo '{\"a\":[1,2]}' | plfli json -tag point\n")
		fmt.Fprintf(stderr, "  plfli -db /tmp/r.db record put cfg settings.json\n")
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.FindAndLoad(*configDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading configuration: %v\n", err)
		return 1
	}
	if *verbosity >= 0 {
		cfg.Log.Verbosity = *verbosity
	}
	if *dbPath != "" {
		cfg.Store.Path = *dbPath
	}
	configureLogging(cfg)

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return 2
	}

	c := &cli{cfg: cfg, stdin: stdin, stdout: stdout, stderr: stderr}
	switch rest[0] {
	case "info":
		err = c.info()
	case "json":
		err = c.json(rest[1:])
	case "record":
		err = c.record(rest[1:])
	default:
		fmt.Fprintf(stderr, "Unknown command %q\n\n", rest[0])
		fs.Usage()
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func configureLogging(cfg *config.Config) {
	if path := cfg.LogPath(); path != "" {
		commonlog.Configure(cfg.Log.Verbosity, &path)
	} else {
		commonlog.Configure(cfg.Log.Verbosity, nil)
	}
}

// withEngine starts a runtime from the configuration, attaches one engine
// and runs fn on it.
func (c *cli) withEngine(fn func(e *engine.Engine) error) error {
	rt := engine.New(c.cfg.EngineOptions())
	defer rt.Shutdown()
	e, err := rt.Attach()
	if err != nil {
		return err
	}
	return fn(e)
}

func (c *cli) readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(c.stdin)
	}
	return os.ReadFile(path)
}

// ---------------------------------------------------------------------------
// info
// ---------------------------------------------------------------------------

func (c *cli) info() error {
	cfg := c.cfg
	source := "defaults"
	if cfg.Dir != "" {
		source = cfg.Dir
	}
	fmt.Fprintf(c.stdout, "config:    %s\n", source)
	fmt.Fprintf(c.stdout, "store:     %s\n", cfg.StorePath())
	fmt.Fprintf(c.stdout, "verbosity: %d\n", cfg.Log.Verbosity)
	fmt.Fprintf(c.stdout, "validate:  %v\n", cfg.Engine.ValidateAPI)
	fmt.Fprintf(c.stdout, "bounded:   %v\n", cfg.Engine.BoundedIntegers)

	return c.withEngine(func(e *engine.Engine) error {
		rt := e.Runtime()
		fmt.Fprintf(c.stdout, "engine:    %s\n", e.UUID())
		fmt.Fprintf(c.stdout, "atoms:     %d\n", rt.Atoms().Len())
		fmt.Fprintf(c.stdout, "modules:   %d\n", len(rt.Modules()))

		w := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "\nstack\tused\tcapacity\tlimit")
		for _, id := range []engine.StackID{engine.GlobalStack, engine.LocalStack, engine.TrailStack} {
			s := e.Stats(id)
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", id, s.Used, s.Capacity, s.Limit)
		}
		return w.Flush()
	})
}

// ---------------------------------------------------------------------------
// json
// ---------------------------------------------------------------------------

func (c *cli) json(args []string) error {
	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	tag := fs.String("tag", "", "Tag for dicts built from objects (default unbound)")
	atoms := fs.Bool("atoms", false, "Convert JSON strings to atoms")
	if err := fs.Parse(args); err != nil {
		return err
	}
	data, err := c.readInput(fs.Arg(0))
	if err != nil {
		return err
	}

	return c.withEngine(func(e *engine.Engine) error {
		opts := jsonOptions(e, *tag, *atoms)
		h := e.NewTermRef()
		if _, err := jsonterm.Unify(e, h, data, opts); err != nil {
			return err
		}
		if err := e.WriteTerm(c.stdout, h, engine.WriteQuoted); err != nil {
			return err
		}
		fmt.Fprintln(c.stdout)
		return nil
	})
}

func jsonOptions(e *engine.Engine, tag string, atoms bool) jsonterm.Options {
	opts := jsonterm.DefaultOptions()
	if tag != "" {
		opts.Tag = e.Runtime().NewAtom(tag)
	}
	opts.StringsAsAtoms = atoms
	return opts
}

// ---------------------------------------------------------------------------
// record
// ---------------------------------------------------------------------------

func (c *cli) record(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("record requires a subcommand: put, get, list or delete")
	}
	sub, args := args[0], args[1:]

	return c.withEngine(func(e *engine.Engine) error {
		s, err := store.Open(c.cfg.StorePath(), e.Runtime())
		if err != nil {
			return err
		}
		defer s.Close()

		switch sub {
		case "put":
			return c.recordPut(e, s, args)
		case "get":
			return c.recordGet(e, s, args)
		case "list":
			return c.recordList(s)
		case "delete":
			if len(args) != 1 {
				return fmt.Errorf("record delete requires a key")
			}
			return s.Delete(args[0])
		}
		return fmt.Errorf("unknown record subcommand %q", sub)
	})
}

func (c *cli) recordPut(e *engine.Engine, s *store.Store, args []string) error {
	fs := flag.NewFlagSet("record put", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	tag := fs.String("tag", "", "Tag for dicts built from objects")
	atoms := fs.Bool("atoms", false, "Convert JSON strings to atoms")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("record put requires a key")
	}
	data, err := c.readInput(fs.Arg(1))
	if err != nil {
		return err
	}

	h := e.NewTermRef()
	if _, err := jsonterm.Unify(e, h, data, jsonOptions(e, *tag, *atoms)); err != nil {
		return err
	}
	return s.PutTerm(e, fs.Arg(0), h)
}

func (c *cli) recordGet(e *engine.Engine, s *store.Store, args []string) error {
	fs := flag.NewFlagSet("record get", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	asJSON := fs.Bool("json", false, "Print the record as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("record get requires a key")
	}

	h := e.NewTermRef()
	if _, err := s.GetTerm(e, fs.Arg(0), h); err != nil {
		return err
	}
	if *asJSON {
		out, err := jsonterm.Marshal(e, h, jsonterm.DefaultOptions())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(c.stdout, "%s\n", out)
		return err
	}
	if err := e.WriteTerm(c.stdout, h, engine.WriteQuoted); err != nil {
		return err
	}
	fmt.Fprintln(c.stdout)
	return nil
}

func (c *cli) recordList(s *store.Store) error {
	entries, err := s.List()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	for _, en := range entries {
		fmt.Fprintf(w, "%s\t%d\t%s\n", en.Key, en.Size, en.Updated.Format(time.RFC3339))
	}
	return w.Flush()
}
