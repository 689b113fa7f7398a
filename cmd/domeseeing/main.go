// Command domeseeing fits every dome seeing OPD map of one or more cases on
// the ASM modal bases and writes the per-map records of each case.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/banshee-data/wavefront.budget/internal/asm"
	"github.com/banshee-data/wavefront.budget/internal/config"
	"github.com/banshee-data/wavefront.budget/internal/db"
	"github.com/banshee-data/wavefront.budget/internal/pipeline"
	"github.com/banshee-data/wavefront.budget/internal/store"
	"github.com/banshee-data/wavefront.budget/internal/version"
)

var errNoInput = errors.New("no OPD maps")

type options struct {
	basisDir   string
	configPath string
	dbPath     string
	out        string
	pattern    string
	cases      []string
}

func main() {
	var o options
	flag.StringVar(&o.basisDir, "basis", "bases", "Directory of the M2S<id>.bin segment bases")
	flag.StringVar(&o.configPath, "config", "", "Fit configuration JSON (defaults when empty)")
	flag.StringVar(&o.dbPath, "db", "", "SQLite database to also store the records in")
	flag.StringVar(&o.out, "out", "domeseeing_kl.bin", "Records file name written in each case directory")
	flag.StringVar(&o.pattern, "pattern", "*.npz", "OPD map file pattern inside a case directory")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] case-dir...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("domeseeing"))
		return
	}
	o.cases = flag.Args()
	if len(o.cases) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o, os.Stdout); err != nil {
		log.Fatalf("domeseeing: %v", err)
	}
}

func run(ctx context.Context, o options, w io.Writer) error {
	cfg, err := config.LoadOrDefault(o.configPath)
	if err != nil {
		return err
	}
	popts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	a, err := store.LoadAssembly(o.basisDir, cfg.SegmentOptions())
	if err != nil {
		return err
	}
	for _, s := range a.Segments() {
		if s.NMode() != cfg.GetNMode() {
			return fmt.Errorf("%s in %s carries %d modes, configuration expects %d", s.Tag(), o.basisDir, s.NMode(), cfg.GetNMode())
		}
	}

	var database *db.DB
	if o.dbPath != "" {
		database, err = db.NewDB(o.dbPath)
		if err != nil {
			return err
		}
		defer database.Close()
	}

	for _, dir := range o.cases {
		if err := processCase(ctx, a, dir, o, popts, database, w); err != nil {
			return fmt.Errorf("case %s: %w", dir, err)
		}
	}
	return nil
}

func processCase(ctx context.Context, a *asm.Assembly, dir string, o options, popts pipeline.Options, database *db.DB, w io.Writer) error {
	files, err := filepath.Glob(filepath.Join(dir, o.pattern))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("%s in %s: %w", o.pattern, dir, errNoInput)
	}
	sort.Strings(files)
	log.Printf("%s: %d OPD maps", dir, len(files))

	batch, err := pipeline.Process(ctx, a, files, popts)
	if err != nil {
		return err
	}
	out := filepath.Join(dir, o.out)
	if err := store.SaveRecords(out, batch); err != nil {
		return err
	}

	name := filepath.Base(filepath.Clean(dir))
	if database != nil {
		run := &db.Run{CaseName: name, Method: string(popts.Method), NMode: batch.NMode()}
		if err := database.InsertRun(run); err != nil {
			return err
		}
		if err := database.InsertRecords(run.RunID, batch); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: run %s\n", name, run.RunID)
	}
	fmt.Fprintf(w, "%s: %d records, mean std %.3fnm -> %s\n", name, len(batch), batch.MeanStd()*1e9, out)
	return nil
}
