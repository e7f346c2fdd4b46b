/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"goscreenplay/internal/backend"
	"goscreenplay/internal/config"
	"goscreenplay/internal/crash"
	"goscreenplay/internal/export"
	applog "goscreenplay/internal/log"
	"goscreenplay/internal/pdftext"
	"goscreenplay/internal/schema"
	"goscreenplay/internal/script"
	"goscreenplay/internal/server"
	"goscreenplay/internal/storage"
	"goscreenplay/internal/telemetry"
	"goscreenplay/internal/version"
)

// EnvShowPage selects one page to print after parse.
const EnvShowPage = "GSP_SHOW_PAGE"

func usage() {
	fmt.Println("GoScreenplay: screenplay PDF to structured elements")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  goscreenplay version|-v|--version               Show version")
	fmt.Println("  goscreenplay parse <in.pdf|pages.json> [out]    Parse a screenplay; out extension picks json|pdf|html|md")
	fmt.Println("  goscreenplay export <parsed.json> <fmt> <out>   Export a parsed script as pdf|html|md|json")
	fmt.Println("  goscreenplay batch <parsed.json> <web|print> [dir]  Export with a preset")
	fmt.Println("  goscreenplay bundle <parsed.json> <out.zip>     Zip all formats into one archive")
	fmt.Println("  goscreenplay validate <parsed.json>             Check a parsed script against the JSON schema")
	fmt.Println("  goscreenplay index <parsed.json|bundle.zip> <name>  Store a parsed script in the local index")
	fmt.Println("  goscreenplay scripts                            List scripts in the local index")
	fmt.Println("  goscreenplay search [flags] <text>              Search the local index (-h for flags)")
	fmt.Println("  goscreenplay publish <parsed.json> <name>       Publish a parsed script to Postgres")
	fmt.Println("  goscreenplay serve [addr]                       Serve the HTTP API")
	fmt.Println("  goscreenplay config path|init|set-password|forget-password")
	fmt.Println()
	fmt.Printf("Set %s=<n> with parse to print the elements of page n.\n", EnvShowPage)
}

func main() {
	cfg, password, cfgErr := config.Load()
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	l := applog.WithComponent("cli")
	if cfgErr != nil {
		l.Warn("config not loaded, using defaults", slog.Any("err", cfgErr))
	}
	telemetry.NewDefault(telemetry.WithOptIn(cfg.General.TelemetryOptIn))

	cc := &crash.Context{}
	if cfg.Index.Path != "" {
		cc.Dir = filepath.Join(filepath.Dir(cfg.Index.Path), "backups")
	}
	defer crash.Recover(cc)

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) < 2 {
		usage()
		return
	}
	cc.Command = args[1]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println(version.String())
		return
	case "parse":
		if len(args) < 3 {
			usageError("parse requires <in.pdf|pages.json>")
		}
		cc.Input = args[2]
		out := ""
		if len(args) >= 4 {
			out = args[3]
		}
		err = runParse(ctx, cfg, args[2], out)
	case "export":
		if len(args) < 5 {
			usageError("export requires <parsed.json> <fmt> <out>")
		}
		cc.Input = args[2]
		err = runExport(args[2], args[3], args[4])
	case "batch":
		if len(args) < 4 {
			usageError("batch requires <parsed.json> <web|print>")
		}
		cc.Input = args[2]
		dir := ""
		if len(args) >= 5 {
			dir = args[4]
		}
		err = runBatch(args[2], args[3], dir)
	case "bundle":
		if len(args) < 4 {
			usageError("bundle requires <parsed.json> <out.zip>")
		}
		cc.Input = args[2]
		err = runBundle(args[2], args[3])
	case "validate":
		if len(args) < 3 {
			usageError("validate requires <parsed.json>")
		}
		cc.Input = args[2]
		err = runValidate(args[2])
	case "index":
		if len(args) < 4 {
			usageError("index requires <parsed.json> <name>")
		}
		cc.Input = args[2]
		err = runIndex(ctx, cfg, args[2], args[3])
	case "scripts":
		err = runScripts(ctx, cfg)
	case "search":
		err = runSearch(ctx, cfg, password, args[2:])
	case "publish":
		if len(args) < 4 {
			usageError("publish requires <parsed.json> <name>")
		}
		cc.Input = args[2]
		err = runPublish(ctx, cfg, password, args[2], args[3])
	case "serve":
		addr := cfg.Server.Addr
		if len(args) >= 3 {
			addr = args[2]
		}
		err = runServe(ctx, cfg, password, addr)
	case "config":
		if len(args) < 3 {
			usageError("config requires path|init|set-password|forget-password")
		}
		err = runConfig(args[2])
	default:
		usage()
		os.Exit(2)
	}
	telemetry.Flush(ctx)
	if err != nil {
		l.Error(args[1]+" failed", slog.Any("err", err))
		fmt.Println("Error:", err)
		_ = applog.Close()
		os.Exit(1)
	}
	_ = applog.Close()
}

func usageError(msg string) {
	fmt.Println(msg)
	usage()
	os.Exit(2)
}

// readPages loads raw pages from a PDF or from a raw-pages JSON document.
func readPages(in string) ([]script.RawPage, string, error) {
	if strings.EqualFold(filepath.Ext(in), ".pdf") {
		pages, err := pdftext.ExtractFile(in, pdftext.DefaultLayout())
		return pages, "pdf", err
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return nil, "", err
	}
	if err := schema.ValidateRawPages(data); err != nil {
		return nil, "", err
	}
	pages, err := script.ReadRawPages(strings.NewReader(string(data)))
	return pages, "json", err
}

func parseWith(ctx context.Context, cfg config.AppConfig, pages []script.RawPage) (script.ParsedScript, error) {
	p := script.NewParser(cfg.Parser.ScriptOptions())
	if cfg.Parser.Workers > 1 {
		return p.ParseConcurrent(ctx, pages, cfg.Parser.Workers)
	}
	return p.Parse(pages)
}

func runParse(ctx context.Context, cfg config.AppConfig, in, out string) error {
	start := time.Now()
	pages, source, err := readPages(in)
	if err != nil {
		return err
	}
	ps, err := parseWith(ctx, cfg, pages)
	if err != nil {
		return err
	}
	telemetry.ScriptParsed(source, len(ps), ps.ElementCount(), time.Since(start))

	// With no output file the JSON goes to stdout, so the summary moves to stderr.
	summary := os.Stdout
	if out == "" {
		summary = os.Stderr
		if err := script.WriteJSON(os.Stdout, ps, true); err != nil {
			return err
		}
	} else {
		title := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
		if err := export.Export(ps, export.FormatFromPath(out), out, title); err != nil {
			return err
		}
	}
	fmt.Fprintf(summary, "Parsed pages: %d (elements: %d)\n", len(ps), ps.ElementCount())
	if out != "" {
		fmt.Fprintf(summary, "Wrote %s\n", out)
	}

	if raw := strings.TrimSpace(os.Getenv(EnvShowPage)); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvShowPage, err)
		}
		pg, ok := ps.Page(n)
		if !ok {
			fmt.Fprintf(summary, "Page %d has no elements\n", n)
			return nil
		}
		return script.WriteJSON(summary, script.ParsedScript{pg}, true)
	}
	return nil
}

// readParsed loads a parsed script from JSON or from a bundle archive.
func readParsed(path string) (script.ParsedScript, error) {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return export.OpenBundle(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(data); err != nil {
		return nil, err
	}
	return script.ReadJSON(strings.NewReader(string(data)))
}

func runExport(in, format, out string) error {
	ps, err := readParsed(in)
	if err != nil {
		return err
	}
	title := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	if err := export.Export(ps, format, out, title); err != nil {
		return err
	}
	fmt.Println("Wrote", out)
	return nil
}

func runBatch(in, preset, dir string) error {
	ps, err := readParsed(in)
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	written, err := export.BatchExport(ps, export.BatchOptions{
		Preset: export.PresetName(preset),
		Name:   name,
		Title:  name,
		OutDir: dir,
	})
	for _, p := range written {
		fmt.Println("Wrote", p)
	}
	return err
}

func runBundle(in, out string) error {
	ps, err := readParsed(in)
	if err != nil {
		return err
	}
	title := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	if err := export.WriteBundle(ps, out, title); err != nil {
		return err
	}
	fmt.Println("Wrote", out)
	return nil
}

func runValidate(in string) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	if err := schema.Validate(data); err != nil {
		return err
	}
	fmt.Println("OK")
	return nil
}

func openIndex(cfg config.AppConfig) (*storage.Index, error) {
	if cfg.Index.Path == "" {
		return nil, errors.New("no index path configured")
	}
	return storage.OpenIndex(cfg.Index.Path)
}

func runIndex(ctx context.Context, cfg config.AppConfig, in, name string) error {
	ps, err := readParsed(in)
	if err != nil {
		return err
	}
	idx, err := openIndex(cfg)
	if err != nil {
		return err
	}
	defer idx.Close()
	id, err := idx.SaveScript(ctx, name, ps)
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %q as #%d (%d pages, %d elements)\n", name, id, len(ps), ps.ElementCount())
	return nil
}

func runScripts(ctx context.Context, cfg config.AppConfig) error {
	idx, err := openIndex(cfg)
	if err != nil {
		return err
	}
	defer idx.Close()
	list, err := idx.ListScripts(ctx)
	if err != nil {
		return err
	}
	for _, s := range list {
		fmt.Printf("#%d  %-30s  pages=%d elements=%d  %s\n", s.ID, s.Name, s.Pages, s.Elements, s.CreatedAt.Format(time.DateTime))
	}
	return nil
}

func runSearch(ctx context.Context, cfg config.AppConfig, password string, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	types := fs.String("type", "", "comma separated element types")
	character := fs.String("character", "", "only dialogue spoken by this character")
	from := fs.Int("from", 0, "first page")
	to := fs.Int("to", 0, "last page")
	limit := fs.Int("limit", 0, "maximum results")
	remote := fs.String("remote", "", "search a running server at this base URL")
	pg := fs.Bool("backend", false, "search the published Postgres copy")
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}
	q := storage.SearchQuery{
		Text:      strings.Join(fs.Args(), " "),
		Character: *character,
		PageFrom:  *from,
		PageTo:    *to,
		Limit:     *limit,
	}
	if *types != "" {
		q.Types = strings.Split(*types, ",")
	}

	var (
		res []storage.SearchResult
		err error
	)
	switch {
	case *remote != "":
		res, err = server.NewClient(*remote, os.Getenv("GSP_API_TOKEN")).Search(ctx, q)
	case *pg:
		var st *backend.Store
		st, err = openBackend(ctx, cfg, password)
		if err != nil {
			return err
		}
		defer st.Close()
		res, err = st.SearchPG(ctx, q)
	default:
		var idx *storage.Index
		idx, err = openIndex(cfg)
		if err != nil {
			return err
		}
		defer idx.Close()
		res, err = idx.Search(ctx, q)
	}
	if err != nil {
		return err
	}
	for _, r := range res {
		text := r.Content
		if r.Snippet != "" {
			text = r.Snippet
		}
		who := ""
		if r.Speaker != "" {
			who = r.Speaker + ": "
		}
		fmt.Printf("%s p.%d  %-14s %s%s\n", r.ScriptName, r.Page, r.Type, who, text)
	}
	fmt.Printf("%d result(s)\n", len(res))
	return nil
}

func openBackend(ctx context.Context, cfg config.AppConfig, password string) (*backend.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Backend.Timeout())
	defer cancel()
	return backend.Open(ctx, cfg.Backend.DSN, password)
}

func runPublish(ctx context.Context, cfg config.AppConfig, password, in, name string) error {
	ps, err := readParsed(in)
	if err != nil {
		return err
	}
	st, err := openBackend(ctx, cfg, password)
	if err != nil {
		return err
	}
	defer st.Close()
	id, err := st.PublishScript(ctx, name, ps)
	if err != nil {
		return err
	}
	fmt.Printf("Published %q as #%d\n", name, id)
	return nil
}

func runServe(ctx context.Context, cfg config.AppConfig, password, addr string) error {
	l := applog.WithComponent("cli")
	opt := server.Options{
		Parser:        cfg.Parser.ScriptOptions(),
		Workers:       cfg.Parser.Workers,
		ValidateInput: true,
	}
	if idx, err := openIndex(cfg); err != nil {
		l.Warn("serving without local index", slog.Any("err", err))
	} else {
		defer idx.Close()
		opt.Index = idx
	}
	if cfg.Backend.DSN != "" {
		st, err := openBackend(ctx, cfg, password)
		if err != nil {
			l.Warn("serving without backend", slog.Any("err", err))
		} else {
			defer st.Close()
			opt.Backend = st
		}
	}
	return server.New(opt).ListenAndServe(ctx, addr)
}

func runConfig(sub string) error {
	switch sub {
	case "path":
		p, err := config.ConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(p)
		return nil
	case "init":
		p, err := config.ConfigPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(p); err == nil {
			return fmt.Errorf("%s already exists", p)
		}
		if err := config.Save(config.Defaults(), ""); err != nil {
			return err
		}
		fmt.Println("Wrote", p)
		return nil
	case "set-password":
		fmt.Print("Backend password: ")
		sc := bufio.NewScanner(os.Stdin)
		if !sc.Scan() {
			return errors.New("no password read")
		}
		pw := strings.TrimSpace(sc.Text())
		if pw == "" {
			return errors.New("empty password")
		}
		if err := config.SetPassword(pw); err != nil {
			return err
		}
		fmt.Println("Password stored in the system keychain.")
		return nil
	case "forget-password":
		if err := config.ForgetPassword(); err != nil {
			return err
		}
		fmt.Println("Password removed from the system keychain.")
		return nil
	}
	usageError("unknown config command: " + sub)
	return nil
}
