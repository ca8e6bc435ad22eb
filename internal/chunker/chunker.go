// Package chunker implements the pure courier model: raw phase
// artifacts are split into readthis/ chunks purely by size, never by
// severity, importance, or content. Nothing is filtered or reordered,
// and the only deduplication is the taint artifact's merge dropping a
// category list that duplicates another (see mergeTaintFindings); a
// budget is tracked and reported but never enforced
// (grounded in the original extraction module's "pure courier"
// principles).
package chunker

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pfaudit/pipeline/internal/artifacts"
	"github.com/pfaudit/pipeline/internal/config"
)

// canonicalListKeys is the priority order used to pick which key of a
// dict-shaped artifact holds the list to chunk. "all_findings" (FCE
// output) comes first because its ordering is severity-significant
// and must never be disturbed by chunking.
var canonicalListKeys = []string{
	"all_findings",
	"merged_findings",
	"findings",
	"vulnerabilities",
	"issues",
	"edges",
	"nodes",
	"taint_paths",
	"paths",
	"dependencies",
	"files",
	"results",
}

// metadataKeys are copied verbatim into every chunk of a dict-shaped
// artifact alongside its per-chunk slice of the list.
var metadataKeys = []string{"success", "summary", "total_vulnerabilities"}

// ChunkedFile is one file written under readthis/.
type ChunkedFile struct {
	Name string
	Size int64
}

// ChunkInfo is the envelope embedded in every chunk of a dict-shaped
// artifact describing where it sits in the original list.
type ChunkInfo struct {
	ChunkNumber        int    `json:"chunk_number"`
	TotalItemsInChunk  int    `json:"total_items_in_chunk"`
	OriginalTotalItems int    `json:"original_total_items"`
	ListKey            string `json:"list_key"`
	Truncated          bool   `json:"truncated"`
}

// ChunkFile splits one raw artifact into readthis/, returning the
// chunks written and whether max_chunks_per_file cut the artifact off
// before every byte or element was written out. A (nil, false, nil)
// return means the file was empty and intentionally produced no
// output; a non-nil error means chunking failed (e.g. malformed JSON
// with no JSONL fallback).
func ChunkFile(rawPath, readthisDir string, limits config.Limits) ([]ChunkedFile, bool, error) {
	content, err := os.ReadFile(rawPath)
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", rawPath, err)
	}

	base := filepath.Base(rawPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	if ext != ".json" {
		return chunkText(string(content), readthisDir, base, stem, ext, limits)
	}

	if len(strings.TrimSpace(string(content))) == 0 {
		return nil, false, nil
	}

	data, err := parseJSONOrJSONL(content)
	if err != nil {
		return nil, false, fmt.Errorf("parsing %s: %w", rawPath, err)
	}
	if data == nil {
		return nil, false, nil
	}

	full, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, false, fmt.Errorf("re-encoding %s: %w", rawPath, err)
	}
	if int64(len(full)) <= limits.MaxChunkSize {
		chunks, err := copyWhole(full, readthisDir, base)
		return chunks, false, err
	}

	switch v := data.(type) {
	case []interface{}:
		return chunkList(v, readthisDir, stem, ext, limits)
	case map[string]interface{}:
		if stem == "taint_analysis" {
			v = mergeTaintFindings(v)
		}
		return chunkDict(v, readthisDir, stem, ext, limits)
	default:
		chunks, err := copyWhole(full, readthisDir, base)
		return chunks, false, err
	}
}

// parseJSONOrJSONL decodes content as a single JSON value; if trailing
// data follows the first value, it retries as JSON Lines (one object
// per non-blank line, malformed lines skipped).
func parseJSONOrJSONL(content []byte) (interface{}, error) {
	var data interface{}
	dec := json.NewDecoder(bytes.NewReader(content))
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	if !dec.More() {
		return data, nil
	}

	var items []interface{}
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var obj interface{}
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			continue
		}
		items = append(items, obj)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items, nil
}

func copyWhole(data []byte, readthisDir, name string) ([]ChunkedFile, error) {
	if err := os.MkdirAll(readthisDir, 0755); err != nil {
		return nil, fmt.Errorf("creating readthis dir: %w", err)
	}
	out := filepath.Join(readthisDir, name)
	if err := artifacts.WriteFileAtomic(out, data, 0644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", out, err)
	}
	return []ChunkedFile{{Name: name, Size: int64(len(data))}}, nil
}

// chunkText splits a non-JSON (or non-dict/list) artifact by raw byte
// offset. The returned bool reports whether max_chunks_per_file was
// reached before the whole file was written out.
func chunkText(content, readthisDir, base, stem, ext string, limits config.Limits) ([]ChunkedFile, bool, error) {
	if int64(len(content)) <= limits.MaxChunkSize {
		chunks, err := copyWhole([]byte(content), readthisDir, base)
		return chunks, false, err
	}

	var chunks []ChunkedFile
	position := 0
	chunkNum := 0
	for position < len(content) && chunkNum < limits.MaxChunksPerFile {
		chunkNum++
		end := position + int(limits.MaxChunkSize)
		if end > len(content) {
			end = len(content)
		}
		name := fmt.Sprintf("%s_chunk%02d%s", stem, chunkNum, ext)
		written, err := copyWhole([]byte(content[position:end]), readthisDir, name)
		if err != nil {
			return nil, false, err
		}
		chunks = append(chunks, written...)
		position = end
	}
	return chunks, position < len(content), nil
}

// chunkList splits a top-level JSON list by packing items into
// size-bounded batches. The returned bool reports whether
// max_chunks_per_file cut the list off before every item was written.
func chunkList(items []interface{}, readthisDir, stem, ext string, limits config.Limits) ([]ChunkedFile, bool, error) {
	var chunks []ChunkedFile
	var current []interface{}
	currentSize := 100
	chunkNum := 0
	truncated := false

	flush := func() error {
		chunkNum++
		name := fmt.Sprintf("%s_chunk%02d%s", stem, chunkNum, ext)
		data, err := json.MarshalIndent(current, "", "  ")
		if err != nil {
			return err
		}
		written, err := copyWhole(data, readthisDir, name)
		if err != nil {
			return err
		}
		chunks = append(chunks, written...)
		return nil
	}

	for _, item := range items {
		itemJSON, _ := json.MarshalIndent(item, "", "  ")
		itemSize := len(itemJSON)

		if currentSize+itemSize > int(limits.MaxChunkSize) && len(current) > 0 {
			if chunkNum >= limits.MaxChunksPerFile {
				truncated = true
				break
			}
			if err := flush(); err != nil {
				return nil, false, err
			}
			current = []interface{}{item}
			currentSize = itemSize + 100
			continue
		}
		current = append(current, item)
		currentSize += itemSize
	}
	if len(current) > 0 {
		if chunkNum < limits.MaxChunksPerFile {
			if err := flush(); err != nil {
				return nil, false, err
			}
		} else {
			truncated = true
		}
	}
	return chunks, truncated, nil
}

// chunkDict splits a dict-shaped artifact by its canonical list key,
// embedding a chunk_info envelope (with its own Truncated flag) in
// every chunk. The returned bool mirrors that same signal for callers
// that only look at the outer return, not the per-chunk envelope.
func chunkDict(data map[string]interface{}, readthisDir, stem, ext string, limits config.Limits) ([]ChunkedFile, bool, error) {
	listKey, ok := firstMatchingListKey(data)
	if !ok {
		full, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return nil, false, err
		}
		chunks, err := copyWhole(full, readthisDir, stem+ext)
		return chunks, false, err
	}

	items, _ := data[listKey].([]interface{})
	metadata := map[string]interface{}{}
	for _, k := range metadataKeys {
		if v, ok := data[k]; ok {
			metadata[k] = v
		}
	}

	var chunks []ChunkedFile
	var chunkItems []interface{}
	chunkNum := 0
	truncated := false
	metadataJSON, _ := json.MarshalIndent(metadata, "", "  ")
	currentSize := len(metadataJSON) + 200

	flush := func(truncated bool) error {
		chunkNum++
		chunkData := make(map[string]interface{}, len(metadata)+2)
		for k, v := range metadata {
			chunkData[k] = v
		}
		chunkData[listKey] = chunkItems
		chunkData["chunk_info"] = ChunkInfo{
			ChunkNumber:        chunkNum,
			TotalItemsInChunk:  len(chunkItems),
			OriginalTotalItems: len(items),
			ListKey:            listKey,
			Truncated:          truncated,
		}
		name := fmt.Sprintf("%s_chunk%02d%s", stem, chunkNum, ext)
		out, err := json.MarshalIndent(chunkData, "", "  ")
		if err != nil {
			return err
		}
		written, err := copyWhole(out, readthisDir, name)
		if err != nil {
			return err
		}
		chunks = append(chunks, written...)
		return nil
	}

	for _, item := range items {
		itemJSON, _ := json.MarshalIndent(item, "", "  ")
		itemSize := len(itemJSON)

		if currentSize+itemSize > int(limits.MaxChunkSize) && len(chunkItems) > 0 {
			if chunkNum >= limits.MaxChunksPerFile {
				truncated = true
				break
			}
			if err := flush(chunkNum+1 >= limits.MaxChunksPerFile); err != nil {
				return nil, false, err
			}
			chunkItems = []interface{}{item}
			currentSize = len(metadataJSON) + itemSize + 200
			continue
		}
		chunkItems = append(chunkItems, item)
		currentSize += itemSize
	}
	if len(chunkItems) > 0 {
		if chunkNum < limits.MaxChunksPerFile {
			if err := flush(false); err != nil {
				return nil, false, err
			}
		} else {
			truncated = true
		}
	}
	return chunks, truncated, nil
}

func firstMatchingListKey(data map[string]interface{}) (string, bool) {
	for _, key := range canonicalListKeys {
		if v, ok := data[key]; ok {
			if _, isList := v.([]interface{}); isList {
				return key, true
			}
		}
	}
	return "", false
}

// ExtractionSummary is written to readthis/extraction_summary.json
// once all raw artifacts have been processed.
type ExtractionSummary struct {
	ExtractionTimestamp time.Time       `json:"extraction_timestamp"`
	BudgetKB            int64           `json:"budget_kb"`
	TotalUsedBytes      int64           `json:"total_used_bytes"`
	TotalUsedKB         int64           `json:"total_used_kb"`
	UtilizationPercent  float64         `json:"utilization_percent"`
	BudgetExceeded      bool            `json:"budget_exceeded"`
	OverBudgetKB        int64           `json:"over_budget_kb"`
	FilesExtracted      int             `json:"files_extracted"`
	FilesSkipped        int             `json:"files_skipped"`
	FilesFailed         int             `json:"files_failed"`
	FilesTruncated      int             `json:"files_truncated"`
	Extracted           []ChunkedFile   `json:"extracted"`
	Skipped             []string        `json:"skipped"`
	Failed              []string        `json:"failed"`
	// Truncated lists artifacts where max_chunks_per_file cut the
	// source off before every byte or list element was written out —
	// the same signal chunkDict's chunk_info.truncated carries inline,
	// surfaced here for text and top-level-list artifacts too.
	Truncated []string `json:"truncated"`
	Strategy  string   `json:"strategy"`
}

// ExtractAll chunks every file under raw/ into readthis/, tracking but
// never enforcing budgetKB (§9: the extraction budget is computed and
// reported, never used to drop facts).
func ExtractAll(store *artifacts.Store, budgetKB int64, limits config.Limits, now time.Time) (*ExtractionSummary, error) {
	names, err := store.ListRawArtifacts()
	if err != nil {
		return nil, fmt.Errorf("listing raw artifacts: %w", err)
	}
	sort.Strings(names)

	if err := os.MkdirAll(store.ReadThisDir(), 0755); err != nil {
		return nil, fmt.Errorf("creating readthis dir: %w", err)
	}

	summary := &ExtractionSummary{
		ExtractionTimestamp: now,
		BudgetKB:            budgetKB,
		Strategy:             "Pure courier model - chunk if needed, no filtering",
	}

	for _, name := range names {
		rawPath := filepath.Join(store.RawDir(), name)
		chunks, truncated, err := ChunkFile(rawPath, store.ReadThisDir(), limits)
		if err != nil {
			summary.Failed = append(summary.Failed, name)
			summary.FilesFailed++
			continue
		}
		if len(chunks) == 0 {
			summary.Skipped = append(summary.Skipped, name)
			summary.FilesSkipped++
			continue
		}
		summary.Extracted = append(summary.Extracted, chunks...)
		summary.FilesExtracted++
		if truncated {
			summary.Truncated = append(summary.Truncated, name)
			summary.FilesTruncated++
		}
		for _, c := range chunks {
			summary.TotalUsedBytes += c.Size
		}
	}

	totalBudgetBytes := budgetKB * 1024
	summary.TotalUsedKB = summary.TotalUsedBytes / 1024
	if totalBudgetBytes > 0 {
		summary.UtilizationPercent = float64(summary.TotalUsedBytes) / float64(totalBudgetBytes) * 100
	}
	summary.BudgetExceeded = summary.TotalUsedBytes > totalBudgetBytes
	if summary.BudgetExceeded {
		summary.OverBudgetKB = (summary.TotalUsedBytes - totalBudgetBytes) / 1024
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return summary, fmt.Errorf("marshaling extraction summary: %w", err)
	}
	if err := artifacts.WriteFileAtomic(store.ExtractionSummaryPath(), data, 0644); err != nil {
		return summary, fmt.Errorf("writing extraction summary: %w", err)
	}

	if summary.FilesFailed > 0 {
		return summary, fmt.Errorf("extraction failed for %d file(s)", summary.FilesFailed)
	}
	return summary, nil
}
