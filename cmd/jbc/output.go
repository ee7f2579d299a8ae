package main

import (
	"os"
	"path/filepath"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

// write puts obj to dir/<base name>.j or to stdout if dir is empty.
func write(dir, src string, obj []byte) error {
	if dir == "" {
		_, err := os.Stdout.Write(obj)
		return err
	}

	base := filepath.Base(src)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	name := filepath.Join(dir, base+".j")

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return errors.Wrap(err, "mkdir")
	}

	err = os.WriteFile(name, obj, 0o644)
	if err != nil {
		return errors.Wrap(err, "write file")
	}

	tlog.Printw("written", "file", name, "size", len(obj))

	return nil
}
