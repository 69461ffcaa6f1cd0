// Package export serializes bisection traces and writes them to disk safely.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"

	"bisection/internal/format"
	"bisection/internal/solver"
)

// Format — формат выгрузки трассы
type Format string

const (
	CSV      Format = "csv"
	JSON     Format = "json"
	Markdown Format = "md"
)

// ParseFormat разбирает значение флага или query-параметра
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return CSV, nil
	case "json":
		return JSON, nil
	case "md", "markdown":
		return Markdown, nil
	default:
		return "", fmt.Errorf("unknown export format %q: want csv, json or md", s)
	}
}

// FormatFromPath — формат по расширению файла, по умолчанию csv
func FormatFromPath(path string) Format {
	f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return CSV
	}
	return f
}

// ContentType — MIME-тип для HTTP-ответа
func (f Format) ContentType() string {
	switch f {
	case JSON:
		return "application/json"
	case Markdown:
		return "text/markdown; charset=utf-8"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Write сериализует результат в w
func Write(w io.Writer, f Format, res solver.Result) error {
	switch f {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(solver.Summary{Result: &res})
	case Markdown:
		_, err := fmt.Fprintf(w, "%s\n\n%s\n", format.Headline(res), format.Trace(res, format.Markdown))
		return err
	default:
		return writeCSV(w, res)
	}
}

func writeCSV(w io.Writer, res solver.Result) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"iteration", "xm", "error", "xl", "xr"})
	for _, it := range res.Trace {
		_ = cw.Write([]string{
			strconv.Itoa(it.K),
			fmtFloat(it.XM),
			fmtFloat(it.Err),
			fmtFloat(it.XL),
			fmtFloat(it.XR),
		})
	}
	cw.Flush()
	return cw.Error()
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 17, 64)
}

// WriteFile пишет трассу в path под файловой блокировкой path+".lock",
// через временный файл и rename, чтобы читатель не увидел половину файла.
func WriteFile(path string, f Format, res solver.Result) error {
	var buf bytes.Buffer
	if err := Write(&buf, f, res); err != nil {
		return fmt.Errorf("encode %s: %w", f, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", path, err)
	}
	defer lock.Unlock()

	return atomicWrite(path, buf.Bytes())
}

func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}
	tmp = nil
	return nil
}
