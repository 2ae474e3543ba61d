package ingestion

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fmuoria/resume-matcher/internal/models"
	"go.uber.org/zap"
)

const (
	// MetadataDirPrefix marks macOS resource-fork directories added by Finder zips
	MetadataDirPrefix = "__MACOSX"
	// MaxEntryBytes caps the decompressed size of a single archive entry
	MaxEntryBytes = 100 << 20
)

// Expansion is an archive unpacked into a scratch directory
type Expansion struct {
	Dir   string
	Files []models.ResumeFile
}

// ArchiveExpander unpacks uploaded zip archives and discovers the resumes inside
type ArchiveExpander struct {
	files  *FileHandler
	logger *zap.Logger
}

// NewArchiveExpander creates an expander that unpacks into scratch dirs under files
func NewArchiveExpander(files *FileHandler, logger *zap.Logger) *ArchiveExpander {
	return &ArchiveExpander{files: files, logger: logger}
}

// Expand unpacks the zip at archivePath into a fresh scratch directory and
// returns the eligible resume files. On error nothing is left on disk except
// the archive itself; on success the caller owns Expansion.Dir and must
// release it with Cleanup.
func (e *ArchiveExpander) Expand(archivePath string) (*Expansion, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		// non-local entry names come back with a usable reader and ErrInsecurePath
		if r != nil {
			r.Close()
		}
		return nil, &ArchiveError{Message: "failed to open zip archive", Cause: err}
	}
	defer r.Close()

	dir, err := e.files.NewScratchDir()
	if err != nil {
		return nil, err
	}

	if err := extractAll(&r.Reader, dir); err != nil {
		e.removeAll(dir)
		return nil, err
	}

	files, err := DiscoverResumes(dir)
	if err != nil {
		e.removeAll(dir)
		return nil, &ArchiveError{Message: "failed to scan extracted archive", Cause: err}
	}

	if len(files) == 0 {
		e.removeAll(dir)
		return nil, summarizeArchive(&r.Reader)
	}

	e.logger.Info("archive expanded",
		zap.String("archive", filepath.Base(archivePath)),
		zap.String("scratch_dir", dir),
		zap.Int("eligible_files", len(files)),
	)

	return &Expansion{Dir: dir, Files: files}, nil
}

// Cleanup removes the scratch directory and the uploaded archive.
// Failures are logged, never returned.
func (e *ArchiveExpander) Cleanup(exp *Expansion, archivePath string) {
	if exp != nil && exp.Dir != "" {
		e.removeAll(exp.Dir)
	}
	if archivePath != "" {
		if err := os.Remove(archivePath); err != nil && !os.IsNotExist(err) {
			e.logger.Warn("failed to remove uploaded archive", zap.String("path", archivePath), zap.Error(err))
		}
	}
}

func (e *ArchiveExpander) removeAll(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		e.logger.Warn("failed to remove scratch directory", zap.String("dir", dir), zap.Error(err))
	}
}

func extractAll(r *zip.Reader, dest string) error {
	root := filepath.Clean(dest) + string(os.PathSeparator)

	for _, f := range r.File {
		target := filepath.Join(dest, filepath.FromSlash(f.Name))
		if target == filepath.Clean(dest) {
			continue
		}
		if !strings.HasPrefix(target, root) {
			return &ArchiveError{Message: fmt.Sprintf("entry %q escapes the archive root", f.Name)}
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return &ArchiveError{Message: "failed to create directory", Cause: err}
			}
			continue
		}

		if err := extractFile(f, target); err != nil {
			return err
		}
	}

	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return &ArchiveError{Message: "failed to create directory", Cause: err}
	}

	rc, err := f.Open()
	if err != nil {
		return &ArchiveError{Message: fmt.Sprintf("failed to read entry %q", f.Name), Cause: err}
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return &ArchiveError{Message: fmt.Sprintf("failed to create %q", f.Name), Cause: err}
	}
	defer out.Close()

	n, err := io.CopyN(out, rc, MaxEntryBytes+1)
	if err != nil && err != io.EOF {
		return &ArchiveError{Message: fmt.Sprintf("failed to extract entry %q", f.Name), Cause: err}
	}
	if n > MaxEntryBytes {
		return &ArchiveError{Message: fmt.Sprintf("entry %q exceeds %d MB", f.Name, MaxEntryBytes>>20)}
	}

	return nil
}

// DiscoverResumes walks root and returns every eligible resume in walk order.
// Directories and files whose name starts with "." or the metadata prefix are
// skipped, as are zero-byte files and formats outside the resume allow-list.
func DiscoverResumes(root string) ([]models.ResumeFile, error) {
	var files []models.ResumeFile

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		name := d.Name()
		if isHiddenOrMetadata(name) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		format, ok := models.FormatFromPath(name)
		if !ok || !models.IsResumeFormat(format) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() == 0 {
			return nil
		}

		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		files = append(files, models.ResumeFile{
			Path:         abs,
			RelativePath: filepath.ToSlash(rel),
			Format:       format,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

func isHiddenOrMetadata(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, MetadataDirPrefix)
}

// summarizeArchive describes the archive contents for diagnosing an empty
// batch. Directory entries are counted and listed but have no file type.
func summarizeArchive(r *zip.Reader) *NoEligibleFilesError {
	result := &NoEligibleFilesError{
		FileTypes: []string{},
		Filenames: []string{},
	}
	seen := make(map[string]bool)

	for _, f := range r.File {
		// every entry counts, directories included
		result.TotalFiles++
		result.Filenames = append(result.Filenames, f.Name)
		if f.FileInfo().IsDir() {
			continue
		}

		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(f.Name)), ".")
		if ext == "" {
			ext = "(none)"
		}
		if !seen[ext] {
			seen[ext] = true
			result.FileTypes = append(result.FileTypes, ext)
		}
	}

	sort.Strings(result.FileTypes)
	return result
}
