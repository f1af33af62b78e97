package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// datedFileWriter appends to a log file named after the current date and
// switches to a new file when the date rolls over. Old files are left in
// place for external log collection.
type datedFileWriter struct {
	dir    string
	prefix string

	mu      sync.Mutex
	current string
	file    *os.File
}

func (w *datedFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	name := fmt.Sprintf("%s_%s.log", w.prefix, time.Now().Format("2006-01-02"))
	if name != w.current || w.file == nil {
		if w.file != nil {
			if err := w.file.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "log file close error: %v\n", err)
			}
		}
		f, err := os.OpenFile(filepath.Join(w.dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return 0, err
		}
		w.current = name
		w.file = f
	}

	return w.file.Write(p)
}

func (w *datedFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	w.current = ""
	return err
}

var fileWriter *datedFileWriter

// EnableFileOutput tees log output into date-named files under dir, in
// addition to stderr. The directory is created if it does not exist.
func EnableFileOutput(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	fileWriter = &datedFileWriter{dir: dir, prefix: "journeymap"}
	log.SetOutput(io.MultiWriter(os.Stderr, fileWriter))
	return nil
}

// DisableFileOutput restores stderr-only logging and closes the current file.
func DisableFileOutput() error {
	log.SetOutput(os.Stderr)
	if fileWriter == nil {
		return nil
	}
	err := fileWriter.Close()
	fileWriter = nil
	return err
}
