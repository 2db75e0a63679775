// Package assets locates and removes the files a table owns on disk: its
// table directory and the CSV exports kept in the namespace's asset folder.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// Layout maps namespaces and tables onto a filesystem rooted at Root:
//
//	<Root>/<namespace>/tables/<tableId>/
//	<Root>/<namespace>/assets/csv/<tableId>.csv
type Layout struct {
	Fs   afero.Fs
	Root string
}

// NewLayout returns a layout on the operating system filesystem.
func NewLayout(root string) Layout {
	return Layout{Fs: afero.NewOsFs(), Root: root}
}

// TableDir returns the directory owned by tableID.
func (l Layout) TableDir(namespace, tableID string) string {
	return filepath.Join(l.Root, namespace, "tables", tableID)
}

// CSVDir returns the namespace's CSV asset directory.
func (l Layout) CSVDir(namespace string) string {
	return filepath.Join(l.Root, namespace, "assets", "csv")
}

// IsTableCSV reports whether name is one of tableID's CSV assets:
// <tableId>.csv, <tableId>.<qualifier>.csv or <tableId>.properties.<qualifier>.csv.
func IsTableCSV(name, tableID string) bool {
	if name == tableID+".csv" {
		return true
	}
	if !strings.HasPrefix(name, tableID+".") || !strings.HasSuffix(name, ".csv") {
		return false
	}
	middle := strings.TrimSuffix(strings.TrimPrefix(name, tableID+"."), ".csv")
	middle = strings.TrimPrefix(middle, "properties.")
	return middle != "" && !strings.Contains(middle, ".")
}

// TableCSVFiles returns the paths of tableID's CSV assets, sorted. A missing
// asset directory yields no files.
func (l Layout) TableCSVFiles(namespace, tableID string) ([]string, error) {
	dir := l.CSVDir(namespace)
	infos, err := afero.ReadDir(l.Fs, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var files []string
	for _, info := range infos {
		if info.IsDir() || !IsTableCSV(info.Name(), tableID) {
			continue
		}
		files = append(files, filepath.Join(dir, info.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// RemoveTable deletes tableID's directory and CSV assets. Missing files are
// not an error; any other failure is returned.
func (l Layout) RemoveTable(namespace, tableID string) error {
	if err := l.Fs.RemoveAll(l.TableDir(namespace, tableID)); err != nil {
		return fmt.Errorf("failed to remove table directory: %w", err)
	}

	files, err := l.TableCSVFiles(namespace, tableID)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := l.Fs.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", f, err)
		}
	}
	return nil
}
