// Package transcript parses the append-only JSONL conversation transcript
// written by the coding assistant and extracts the text that should be
// spoken for the current response cycle.
//
// The transcript is written incrementally by another process: blank lines
// and malformed or partially-flushed trailing lines are expected and are
// skipped rather than treated as errors.
package transcript

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"
)

// Block type tags as they appear in transcript content arrays.
const (
	BlockText    = "text"
	BlockToolUse = "tool_use"
)

// EntryAssistant is the only entry kind relevant to speech extraction.
const EntryAssistant = "assistant"

// ContentBlock is one element of an entry's content array. Block types other
// than text and tool_use are carried but ignored by extraction.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Name string `json:"name,omitempty"`
}

// Entry is one parsed transcript line. Entries are reconstructed on every
// read and never persisted.
type Entry struct {
	Type    string        `json:"type"`
	Message *EntryMessage `json:"message,omitempty"`

	// Content covers the flat layout used by older transcript writers that
	// place block arrays at the top level.
	Content []ContentBlock `json:"content,omitempty"`
}

// EntryMessage is the nested message object carrying the content blocks.
type EntryMessage struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// blocks returns the entry's content blocks regardless of layout.
func (e *Entry) blocks() []ContentBlock {
	if e.Message != nil && len(e.Message.Content) > 0 {
		return e.Message.Content
	}
	return e.Content
}

// Extraction is the result of scanning a transcript: the last assistant text
// and whether the entry it came from also invoked a tool.
type Extraction struct {
	// Text is the last text-block payload of the last qualifying assistant
	// entry that contained a text block.
	Text string

	// ToolUsePending reports that the winning entry also contained a
	// tool-use block: the assistant is not done talking yet and more output
	// is expected once the tool resolves.
	ToolUsePending bool
}

// Extract scans transcript lines in order and returns the single text span
// that should be spoken, or ok=false if no assistant text exists.
//
// Within one entry only the last text block counts (earlier blocks in the
// same entry are superseded restatements). Across entries the latest entry
// containing a text block wins; entries without text blocks never erase a
// previously captured result. Lines that fail to parse as JSON objects are
// skipped.
func Extract(lines []string) (Extraction, bool) {
	var (
		result Extraction
		found  bool
	)

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if entry.Type != EntryAssistant {
			continue
		}

		var (
			lastText string
			hasText  bool
			hasTool  bool
		)
		for _, block := range entry.blocks() {
			switch block.Type {
			case BlockText:
				lastText = block.Text
				hasText = true
			case BlockToolUse:
				hasTool = true
			}
		}

		if hasText {
			result = Extraction{Text: lastText, ToolUsePending: hasTool}
			found = true
		}
	}

	return result, found
}

// ReadFile reads the transcript at path and extracts the speakable text.
// A missing file is not an error: there is simply nothing to speak yet.
func ReadFile(path string) (Extraction, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Extraction{}, false, nil
		}
		return Extraction{}, false, err
	}
	defer f.Close()

	lines, err := readLines(f)
	if err != nil {
		return Extraction{}, false, err
	}
	ext, ok := Extract(lines)
	return ext, ok, nil
}

// readLines splits r into lines, tolerating a final line without a newline.
func readLines(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}
