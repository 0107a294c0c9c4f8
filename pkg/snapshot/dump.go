package snapshot

import (
	"archive/tar"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/strata/pkg/index"
	"github.com/cuemby/strata/pkg/metrics"
	"github.com/cuemby/strata/pkg/tasks"
	"github.com/cuemby/strata/pkg/types"
	"github.com/klauspost/compress/gzip"
)

// dumpMetadata is the top-level metadata.json of a dump archive.
type dumpMetadata struct {
	DumpVersion string    `json:"dump_version"`
	CreatedAt   time.Time `json:"created_at"`
	IndexUIDs   []string  `json:"index_uids"`
}

// indexMetadata is the per-index metadata.json entry inside a dump.
type indexMetadata struct {
	UID        string `json:"uid"`
	PrimaryKey string `json:"primary_key"`
}

// DumpManager creates portable, human-inspectable dump archives.
type DumpManager struct {
	dumpDir string
}

// NewDumpManager creates a DumpManager rooted at dumpDir.
func NewDumpManager(dumpDir string) *DumpManager {
	return &DumpManager{dumpDir: dumpDir}
}

// Create writes a gzip-compressed tar archive containing every index's
// documents (JSONL), settings (JSON), and metadata, plus the full task
// queue (JSONL) and a top-level metadata.json.
func (d *DumpManager) Create(indexes map[string]*index.Index, queue *tasks.Queue) (string, error) {
	timer := metrics.NewTimer()

	if err := os.MkdirAll(d.dumpDir, 0o755); err != nil {
		return "", fmt.Errorf("snapshot: create dump dir: %w", err)
	}
	uid := fmt.Sprintf("dump-%d", time.Now().UnixNano())
	path := filepath.Join(d.dumpDir, uid+".dump")

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("snapshot: create dump file: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	indexUIDs := make([]string, 0, len(indexes))
	for uidName := range indexes {
		indexUIDs = append(indexUIDs, uidName)
	}

	meta := dumpMetadata{DumpVersion: "1", CreatedAt: time.Now(), IndexUIDs: indexUIDs}
	if err := writeJSONEntry(tw, "metadata.json", meta); err != nil {
		return "", err
	}

	for uidName, idx := range indexes {
		if err := dumpIndex(tw, uidName, idx); err != nil {
			return "", fmt.Errorf("snapshot: dump index %s: %w", uidName, err)
		}
	}

	allTasks, err := queue.AllTasks()
	if err != nil {
		return "", fmt.Errorf("snapshot: list tasks: %w", err)
	}
	if err := writeJSONLEntry(tw, "tasks.jsonl", toAnySlice(allTasks)); err != nil {
		return "", err
	}

	if err := tw.Close(); err != nil {
		return "", fmt.Errorf("snapshot: close tar writer: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("snapshot: close gzip writer: %w", err)
	}

	timer.ObserveDuration(metrics.DumpDuration)
	return path, nil
}

func dumpIndex(tw *tar.Writer, uid string, idx *index.Index) error {
	base := filepath.Join("indexes", uid)

	primaryKey, err := idx.PrimaryKey()
	if err != nil {
		return err
	}
	meta := indexMetadata{UID: uid, PrimaryKey: primaryKey}
	if err := writeJSONEntry(tw, filepath.Join(base, "metadata.json"), meta); err != nil {
		return err
	}

	settings, err := idx.Settings()
	if err != nil {
		return err
	}
	if err := writeJSONEntry(tw, filepath.Join(base, "settings.json"), settings); err != nil {
		return err
	}

	docids, err := idx.AllDocids()
	if err != nil {
		return err
	}
	var docs []types.Document
	it := docids.Iterator()
	for it.HasNext() {
		docID := types.DocID(it.Next())
		doc, found, err := idx.GetDocument(docID)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		docs = append(docs, doc)
	}
	return writeJSONLEntryDocs(tw, filepath.Join(base, "documents.jsonl"), docs)
}

func writeJSONEntry(tw *tar.Writer, name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot: marshal %s: %w", name, err)
	}
	return writeTarEntry(tw, name, data)
}

func writeJSONLEntry(tw *tar.Writer, name string, items []interface{}) error {
	var buf []byte
	for _, item := range items {
		line, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("snapshot: marshal %s line: %w", name, err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	return writeTarEntry(tw, name, buf)
}

func writeJSONLEntryDocs(tw *tar.Writer, name string, docs []types.Document) error {
	var buf []byte
	for _, doc := range docs {
		line, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("snapshot: marshal %s line: %w", name, err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	return writeTarEntry(tw, name, buf)
}

func writeTarEntry(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{
		Name: name,
		Mode: 0o644,
		Size: int64(len(data)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("snapshot: write tar header %s: %w", name, err)
	}
	_, err := tw.Write(data)
	return err
}

func toAnySlice[T any](items []T) []interface{} {
	out := make([]interface{}, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}
