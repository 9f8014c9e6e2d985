package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/creasty/defaults"
	"github.com/hashicorp/terraform-plugin-log/tflog"
	"golang.org/x/text/transform"
)

// Subsystem is the tflog subsystem used by this package.
const Subsystem = "report"

var errClipboardUnsupported = errors.New("no clipboard utility available on this system")

// Report is one rendering job: sorted records plus where and how to put them.
type Report struct {
	Records  []Record
	Columns  []string // header row; taken from the first record when nil
	Format   Format
	BaseName string // file name without extension
	Title    string // heading of HTML documents
}

func (r Report) header() []string {
	if r.Columns != nil {
		return r.Columns
	}
	if len(r.Records) == 0 {
		return nil
	}
	return r.Records[0].Header()
}

// Result describes what Render produced.
type Result struct {
	Path   string // written file, empty for clipboard output
	Viewed bool   // a viewer was launched for Path
}

// Options configures a Renderer.
type Options struct {
	OutputDir  string   `default:"."`
	Encoding   Encoding `default:"utf8"`
	ViewOutput bool

	// Clipboard and Viewer default to the system implementations.
	Clipboard Clipboard
	Viewer    Viewer
}

// Renderer writes reports to files or the clipboard.
type Renderer struct {
	outputDir  string
	encoding   Encoding
	viewOutput bool
	clipboard  Clipboard
	viewer     Viewer
}

// NewRenderer creates a renderer, filling unset options with defaults.
func NewRenderer(opts Options) (*Renderer, error) {
	if err := defaults.Set(&opts); err != nil {
		return nil, fmt.Errorf("failed to apply renderer defaults: %w", err)
	}

	enc, err := ParseEncoding(string(opts.Encoding))
	if err != nil {
		return nil, err
	}

	if opts.Clipboard == nil {
		opts.Clipboard = SystemClipboard{}
	}
	if opts.Viewer == nil {
		opts.Viewer = SystemViewer{}
	}

	return &Renderer{
		outputDir:  opts.OutputDir,
		encoding:   enc,
		viewOutput: opts.ViewOutput,
		clipboard:  opts.Clipboard,
		viewer:     opts.Viewer,
	}, nil
}

// Render writes rep in its format. File formats are optionally opened in a
// viewer afterwards; a viewer that fails to launch is logged and ignored.
func (r *Renderer) Render(ctx context.Context, rep Report) (Result, error) {
	start := time.Now()
	fields := map[string]any{
		"format":  rep.Format.String(),
		"report":  rep.BaseName,
		"records": len(rep.Records),
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	if rep.Format == FormatHTMLClipboard {
		var buf bytes.Buffer
		if err := WriteHTMLFragment(ctx, &buf, rep); err != nil {
			return Result{}, err
		}
		if err := r.clipboard.WriteAll(buf.String()); err != nil {
			return Result{}, fmt.Errorf("failed to copy report to clipboard: %w", err)
		}
		fields["duration_ms"] = time.Since(start).Milliseconds()
		tflog.SubsystemInfo(ctx, Subsystem, "Report copied to clipboard", fields)
		return Result{}, nil
	}

	if !rep.Format.WritesFile() {
		return Result{}, fmt.Errorf("unsupported report format: %s", rep.Format)
	}

	path, err := r.writeFile(ctx, rep)
	if err != nil {
		return Result{}, err
	}

	fields["path"] = path
	fields["duration_ms"] = time.Since(start).Milliseconds()
	tflog.SubsystemInfo(ctx, Subsystem, "Report written", fields)

	result := Result{Path: path}
	if r.viewOutput {
		if err := r.viewer.Open(path); err != nil {
			tflog.SubsystemWarn(ctx, Subsystem, "Failed to open report in viewer", map[string]any{
				"path":  path,
				"error": err.Error(),
			})
		} else {
			result.Viewed = true
		}
	}

	return result, nil
}

// Path returns the file that rep would be written to.
func (r *Renderer) Path(rep Report) string {
	return filepath.Join(r.outputDir, SanitizeFileName(rep.BaseName)+rep.Format.Extension())
}

func (r *Renderer) writeFile(ctx context.Context, rep Report) (path string, err error) {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", r.outputDir, err)
	}

	path = r.Path(rep)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	var w io.Writer = f
	var tw *transform.Writer
	if e := r.encoding.encoding(); e != nil {
		tw = transform.NewWriter(f, e.NewEncoder())
		w = tw
	}

	switch rep.Format {
	case FormatHTMLFile:
		err = WriteHTMLDocument(ctx, w, rep, r.encoding)
	case FormatXMLFile:
		err = WriteXML(w, rep, r.encoding)
	case FormatCSVFile:
		err = WriteCSV(w, rep)
	}
	if err != nil {
		return "", err
	}

	if tw != nil {
		if err := tw.Close(); err != nil {
			return "", fmt.Errorf("failed to encode %s: %w", path, err)
		}
	}

	return path, nil
}
