package util

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// FileMode is the default FileMode used when creating files.
const FileMode = 0664

// DirMode is the default FileMode used when creating directories.
const DirMode = 0775

// FileExists checks whether some file exists.
func FileExists(file string) bool {
	stat, err := os.Stat(file)
	return err == nil && !stat.IsDir()
}

// DirExists checks whether some directory exists.
func DirExists(dir string) bool {
	stat, err := os.Stat(dir)
	return err == nil && stat.IsDir()
}

// WriteFile writes `data` to `filePath`, creating missing parent directories.
func WriteFile(filePath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(filePath), DirMode); err != nil {
		return errors.Wrapf(err, "failed to create directory for '%s'", filePath)
	}
	if err := os.WriteFile(filePath, data, FileMode); err != nil {
		return errors.Wrapf(err, "failed to write '%s'", filePath)
	}
	return nil
}

// CopyFile copies the content of `src` to `dst`, creating missing parent directories.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "failed to open '%s'", src)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), DirMode); err != nil {
		return errors.Wrapf(err, "failed to create directory for '%s'", dst)
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, FileMode)
	if err != nil {
		return errors.Wrapf(err, "failed to create '%s'", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrapf(err, "failed to copy '%s' to '%s'", src, dst)
	}
	return errors.Wrapf(out.Close(), "failed to close '%s'", dst)
}

// ReadYaml reads and decodes the YAML file at `filePath` into `v`.
func ReadYaml(filePath string, v interface{}) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to read '%s'", filePath)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "failed to parse '%s'", filePath)
	}
	return nil
}
