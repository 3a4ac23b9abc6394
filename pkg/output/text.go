// Package output writes rendered images: the tab-separated text table that
// downstream tooling reads, plus optional EXR and PNG companions.
package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/df07/go-grrt/pkg/renderer"
	"github.com/klauspost/compress/zstd"
)

// Observables.
const (
	Redshift   = "redshift"
	Luminosity = "luminosity"
)

const banner = "###Computed by Odyssey"

// Header returns the two header lines for an observable.
func Header(observable string) string {
	column := "  redshift"
	if observable == Luminosity {
		column = " Luminosity (erg/sec)"
	}
	return banner + "\n###output data:(alpha,  beta," + column + ")\n"
}

// WriteText writes the header and one row per pixel, row-major.
func WriteText(w io.Writer, img *renderer.Image, observable string) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(Header(observable)); err != nil {
		return err
	}
	for _, p := range img.Pixels {
		// Values are rounded to single precision before formatting.
		if _, err := fmt.Fprintf(bw, "%f\t%f\t%f\n",
			float64(float32(p.Alpha)), float64(float32(p.Beta)), float64(float32(p.Value))); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes the text table to path through a temporary file that is
// renamed into place on success, so a failed run never leaves a partial
// file. A ".zst" suffix compresses the table with zstd.
func WriteFile(path string, img *renderer.Image, observable string) error {
	return atomicWrite(path, func(w *os.File) error {
		if !strings.HasSuffix(path, ".zst") {
			return WriteText(w, img, observable)
		}
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return err
		}
		if err := WriteText(enc, img, observable); err != nil {
			enc.Close()
			return err
		}
		return enc.Close()
	})
}

// Open returns a reader over a text table written by WriteFile,
// decompressing ".zst" files.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".zst") {
		return f, nil
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &zstdFile{Decoder: dec, f: f}, nil
}

type zstdFile struct {
	*zstd.Decoder
	f *os.File
}

func (z *zstdFile) Close() error {
	z.Decoder.Close()
	return z.f.Close()
}

func atomicWrite(path string, write func(*os.File) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// DefaultName returns the conventional table name for a scenario.
func DefaultName(scenario string) string {
	return fmt.Sprintf("Output_%s.txt", scenario)
}
