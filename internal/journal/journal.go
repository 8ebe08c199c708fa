// Package journal implements the File Journal (spec.md §4.D): the
// append/rewrite protocol that persists a collection to disk and
// recovers from partial writes.
//
// Two write paths are supported:
//
//   - Rewrite: the whole collection (header + every document line) is
//     written to a fresh temporary file in the same directory, flushed
//     and synced, then atomically renamed over the target. Used by every
//     mutation except a pure append-only insert.
//   - Append: a single new line is appended to the existing file and
//     synced. Used only as an optimization for single-document inserts
//     (spec.md §4.D, §9 Open Question #2).
//
// The rewrite-temp-then-rename sequencing follows osakka-entitydb's
// storage/binary/entity_repository.go (Update/Delete/RebuildIndex all
// write to "<file>.tmp" and os.Rename over the target); the header-line
// plus append-then-sync shape follows the jsonldb Table's
// saveLocked/Append pair.
package journal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"docbase/internal/codec"
	"docbase/internal/dberrors"
)

// Journal persists exactly one collection: the file at Path, in
// directory Dir.
type Journal struct {
	Dir  string
	Name string
}

// New returns a Journal for the collection named name, persisted under
// dir/<name>.json.
func New(dir, name string) *Journal {
	return &Journal{Dir: dir, Name: name}
}

// Path returns the path of the collection file: Dir joined with
// "<Name>.json" (relative if Dir is relative).
func (j *Journal) Path() string {
	return filepath.Join(j.Dir, j.Name+".json")
}

// Exists reports whether the collection file is present.
func (j *Journal) Exists() bool {
	_, err := os.Stat(j.Path())
	return err == nil
}

// Loaded is the result of reading a collection file: its declared
// schema version and its documents in file order.
type Loaded struct {
	SchemaVersion string
	Docs          []LoadedDoc
}

// LoadedDoc pairs a decoded document with the line it came from, so
// callers can report CorruptCollection with a precise line number.
type LoadedDoc struct {
	Line int
	Doc  codec.Doc
}

// Load reads the collection file, parsing the header then one document
// per subsequent line. A line that fails to parse aborts the load with
// CorruptCollection identifying the line number; no partial collection
// is ever returned. An absent file yields the unwrapped os.Open error, so
// callers distinguish "never created" from "corrupt" via os.IsNotExist.
func (j *Journal) Load() (*Loaded, error) {
	f, err := os.Open(j.Path())
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, dberrors.IO(j.Name, err)
		}
		return nil, dberrors.Wrap(j.Name, dberrors.ErrSchemaHeaderMissing)
	}
	header, err := codec.DecodeHeader(scanner.Bytes())
	if err != nil {
		return nil, dberrors.Wrap(j.Name, dberrors.ErrSchemaHeaderMissing)
	}

	result := &Loaded{SchemaVersion: header.SchemaVersion}
	line := 1
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		doc, err := codec.DecodeLine(raw)
		if err != nil {
			return nil, dberrors.WrapLine(j.Name, line, dberrors.ErrCorruptCollection)
		}
		result.Docs = append(result.Docs, LoadedDoc{Line: line, Doc: doc})
	}
	if err := scanner.Err(); err != nil {
		return nil, dberrors.IO(j.Name, err)
	}
	return result, nil
}

// LoadTolerant behaves like Load, but a final line that fails to parse
// (such as a partial line) is silently dropped instead of failing the
// whole load; an unterminated final line that parses is kept. This is the recovery behavior the append fast path relies
// on: a crash mid-append leaves at most one incomplete trailing line,
// and every complete line up to that point is still a valid prefix of
// the collection (spec.md §4.D).
func (j *Journal) LoadTolerant() (*Loaded, error) {
	data, err := os.ReadFile(j.Path())
	if err != nil {
		return nil, err
	}
	lines := splitLines(data)
	if len(lines) == 0 {
		return nil, dberrors.Wrap(j.Name, dberrors.ErrSchemaHeaderMissing)
	}

	header, err := codec.DecodeHeader(lines[0])
	if err != nil {
		return nil, dberrors.Wrap(j.Name, dberrors.ErrSchemaHeaderMissing)
	}
	result := &Loaded{SchemaVersion: header.SchemaVersion}

	for i := 1; i < len(lines); i++ {
		raw := lines[i]
		if len(raw) == 0 {
			continue
		}
		doc, err := codec.DecodeLine(raw)
		if err != nil {
			if i == len(lines)-1 {
				// Trailing partial line from a crashed append: drop it.
				break
			}
			return nil, dberrors.WrapLine(j.Name, i+1, dberrors.ErrCorruptCollection)
		}
		result.Docs = append(result.Docs, LoadedDoc{Line: i + 1, Doc: doc})
	}
	return result, nil
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}

// CreateEmpty writes a fresh file containing only the header line.
// Fails with CollectionExists if the file already exists and is
// non-empty.
func (j *Journal) CreateEmpty(schemaVersion string) error {
	if info, err := os.Stat(j.Path()); err == nil && info.Size() > 0 {
		return dberrors.Wrap(j.Name, dberrors.ErrCollectionExists)
	}
	return j.Rewrite(schemaVersion, nil)
}

// Rewrite atomically replaces the collection file with a header line
// followed by one line per document, in order. The write goes to a
// sibling temporary file (suffixed with a random uuid so concurrent
// rewrites of different collections, or a stale leftover from a crashed
// process, never collide), is flushed and synced, then renamed over the
// target.
func (j *Journal) Rewrite(schemaVersion string, docs []codec.Doc) error {
	if err := os.MkdirAll(j.Dir, 0o755); err != nil {
		return dberrors.IO(j.Name, err)
	}

	tmpPath := filepath.Join(j.Dir, fmt.Sprintf(".%s.%s.tmp", j.Name, uuid.NewString()))
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return dberrors.IO(j.Name, err)
	}

	writeErr := func() error {
		w := bufio.NewWriter(f)
		headerLine, err := codec.EncodeHeader(codec.Header{SchemaVersion: schemaVersion})
		if err != nil {
			return err
		}
		if _, err := w.Write(headerLine); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
		for _, doc := range docs {
			line, err := codec.EncodeLine(doc)
			if err != nil {
				return err
			}
			if _, err := w.Write(line); err != nil {
				return err
			}
			if err := w.WriteByte('\n'); err != nil {
				return err
			}
		}
		return w.Flush()
	}()

	if writeErr == nil {
		writeErr = f.Sync()
	}
	closeErr := f.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return dberrors.IO(j.Name, writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return dberrors.IO(j.Name, closeErr)
	}

	if err := os.Rename(tmpPath, j.Path()); err != nil {
		os.Remove(tmpPath)
		return dberrors.IO(j.Name, err)
	}
	return nil
}

// Append writes a single new document line to the end of the file and
// syncs. The caller is responsible for ensuring the header and every
// prior line are already present (i.e. that the file was previously
// created via Rewrite/CreateEmpty). Used only for pure-insert fast
// paths; any operation that removes or replaces a line uses Rewrite.
func (j *Journal) Append(doc codec.Doc) error {
	f, err := os.OpenFile(j.Path(), os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return dberrors.IO(j.Name, err)
	}
	defer f.Close()

	line, err := codec.EncodeLine(doc)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	if _, err := f.Write(line); err != nil {
		return dberrors.IO(j.Name, err)
	}
	return f.Sync()
}

// Remove deletes the collection file entirely.
func (j *Journal) Remove() error {
	if err := os.Remove(j.Path()); err != nil && !os.IsNotExist(err) {
		return dberrors.IO(j.Name, err)
	}
	return nil
}

// CleanupStaleTemp removes any leftover ".<name>.*.tmp" file from a
// prior crash mid-rewrite. Called once when a collection is first
// opened.
func (j *Journal) CleanupStaleTemp() {
	matches, _ := filepath.Glob(filepath.Join(j.Dir, "."+j.Name+".*.tmp"))
	for _, m := range matches {
		os.Remove(m)
	}
}
