// Command voicenote sends audio files through a voicenotes server and writes
// the transcript, summary and to-do list for each one.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"voicenotes/internal/client"
	"voicenotes/internal/export"
	"voicenotes/internal/logger"
	"voicenotes/internal/todo"
	"voicenotes/internal/watcher"
)

type options struct {
	server   string
	outDir   string
	tab      string
	format   string
	watchDir string
	logLevel string
	pdfFont  string
}

func main() {
	_ = godotenv.Load()

	opts := options{}
	flag.StringVar(&opts.server, "server", envOrDefault("VOICENOTE_SERVER", "http://localhost:3000"), "voicenotes server URL")
	flag.StringVar(&opts.outDir, "out", "", "write results to this directory instead of stdout")
	flag.StringVar(&opts.tab, "tab", "all", "markdown section: all, transcript, highlights or todos")
	flag.StringVar(&opts.format, "format", "markdown", "output format: markdown, pdf or docx (pdf and docx need -out)")
	flag.StringVar(&opts.watchDir, "watch", "", "process audio files created in this directory until interrupted")
	flag.StringVar(&opts.pdfFont, "pdf-font", envOrDefault("PDF_FONT_PATH", ""), "TrueType font for -format pdf, needed for CJK text")
	flag.StringVar(&opts.logLevel, "log-level", envOrDefault("LOG_LEVEL", "warn"), "log level")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: voicenote [flags] file...\n       voicenote [flags] -watch DIR\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(opts, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "voicenote: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options, files []string) error {
	if err := opts.check(len(files)); err != nil {
		flag.Usage()
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.NewWithWriter(os.Stderr, opts.logLevel)
	p := &processor{opts: opts, log: log, stdout: os.Stdout, stderr: os.Stderr, pdfFont: export.DefaultFont()}
	if opts.pdfFont != "" {
		font, err := export.LoadFont(opts.pdfFont)
		if err != nil {
			return err
		}
		p.pdfFont = font
	}

	if opts.watchDir != "" {
		w, err := watcher.New(opts.watchDir, p.process, log, 1)
		if err != nil {
			return err
		}
		defer w.Stop()

		fmt.Fprintf(os.Stderr, "watching %s, press Ctrl+C to stop\n", opts.watchDir)
		if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	var failed int
	for _, path := range files {
		if err := p.process(ctx, path); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

func (o options) check(nfiles int) error {
	switch o.tab {
	case "all", export.TabTranscript, export.TabHighlights, export.TabTodos:
	default:
		return fmt.Errorf("%w: %s", export.ErrUnknownTab, o.tab)
	}
	switch o.format {
	case "markdown", "md":
	case "pdf", "docx":
		if o.outDir == "" {
			return fmt.Errorf("-format %s needs -out", o.format)
		}
	default:
		return fmt.Errorf("unknown format %q", o.format)
	}
	if o.watchDir == "" && nfiles == 0 {
		return errors.New("no input files")
	}
	if o.watchDir != "" && nfiles > 0 {
		return errors.New("-watch does not take file arguments")
	}
	return nil
}

type processor struct {
	opts    options
	log     logger.Logger
	stdout  io.Writer
	stderr  io.Writer
	pdfFont export.Font
}

func (p *processor) process(ctx context.Context, path string) error {
	name := filepath.Base(path)
	progress := newProgressLine(p.stderr, name)

	o := client.New(p.opts.server, client.WithLogger(p.log), client.WithOnChange(progress.update))
	snap, err := o.RunFile(ctx, path)
	progress.finish(snap)
	if err != nil {
		return err
	}

	doc := snap.Document()
	done, total := todo.Stats(doc.TodosTree)
	p.log.Info(ctx, "%s: %d chars, %d/%d to-dos done", name, len(doc.Transcript), done, total)

	tab := p.opts.tab
	if tab == "all" {
		tab = ""
	}

	var (
		data []byte
		ext  string
	)
	switch p.opts.format {
	case "pdf":
		data, err = export.PDF(doc, time.Now(), p.pdfFont)
		ext = ".pdf"
	case "docx":
		data, err = export.DOCX(doc)
		ext = ".docx"
	default:
		var md string
		md, err = export.Markdown(doc, tab)
		data = []byte(md)
		ext = ".md"
	}
	if err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}

	if p.opts.outDir == "" {
		_, err := p.stdout.Write(data)
		return err
	}

	if err := os.MkdirAll(p.opts.outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	target := outputPath(p.opts.outDir, doc.Title, ext)
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	fmt.Fprintf(p.stderr, "wrote %s\n", target)
	return nil
}

// outputPath never overwrites an earlier result.
func outputPath(dir, title, ext string) string {
	if title == "" {
		title = "voice-note"
	}
	target := filepath.Join(dir, title+ext)
	if _, err := os.Stat(target); errors.Is(err, os.ErrNotExist) {
		return target
	}
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return filepath.Join(dir, title+"-"+suffix+ext)
}

// progressLine may be updated from the transport's goroutine.
type progressLine struct {
	mu   sync.Mutex
	w    io.Writer
	name string
	last string
}

func newProgressLine(w io.Writer, name string) *progressLine {
	return &progressLine{w: w, name: name}
}

func (l *progressLine) update(s client.Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	line := fmt.Sprintf("%s: %-12s %3d%%", l.name, s.Stage, s.Percent())
	if line == l.last {
		return
	}
	l.last = line
	fmt.Fprintf(l.w, "\r%s", line)
}

func (l *progressLine) finish(s client.Snapshot) {
	l.update(s)
	l.mu.Lock()
	fmt.Fprintln(l.w)
	l.mu.Unlock()
}

func envOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
