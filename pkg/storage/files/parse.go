package files

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/memos/pkg/memo"
)

const frontMatterDelimiter = "---"

// frontMatter is the YAML header of a memo file. Timestamps stay strings on
// disk and are converted back to time.Time by Parse.
type frontMatter struct {
	ID        string `yaml:"id"`
	CreatedAt string `yaml:"created_at"`
	UpdatedAt string `yaml:"updated_at"`
}

// Parse deserializes a memo file into a Memo.
func Parse(raw []byte) (memo.Memo, error) {
	s := string(raw)
	if !strings.HasPrefix(s, frontMatterDelimiter) {
		return memo.Memo{}, fmt.Errorf("files: missing front-matter delimiter")
	}

	rest := s[len(frontMatterDelimiter):]
	idx := strings.Index(rest, "\n"+frontMatterDelimiter)
	if idx == -1 {
		return memo.Memo{}, fmt.Errorf("files: unclosed front-matter block")
	}

	yamlBlock := rest[:idx]
	// Serialize always writes exactly one blank line after the closing delimiter.
	body := strings.TrimPrefix(rest[idx+len("\n"+frontMatterDelimiter):], "\n\n")

	var fm frontMatter
	if err := yaml.Unmarshal([]byte(yamlBlock), &fm); err != nil {
		return memo.Memo{}, fmt.Errorf("files: front-matter parse error: %w", err)
	}
	if fm.ID == "" {
		return memo.Memo{}, fmt.Errorf("files: missing id")
	}

	created, err := memo.ParseTimestamp(fm.CreatedAt)
	if err != nil {
		return memo.Memo{}, fmt.Errorf("files: memo %s: created_at: %w", fm.ID, err)
	}
	updated, err := memo.ParseTimestamp(fm.UpdatedAt)
	if err != nil {
		return memo.Memo{}, fmt.Errorf("files: memo %s: updated_at: %w", fm.ID, err)
	}

	return memo.Memo{
		ID:        fm.ID,
		Text:      body,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

// Serialize renders a memo to its on-disk representation.
func Serialize(m memo.Memo) ([]byte, error) {
	yamlBytes, err := yaml.Marshal(&frontMatter{
		ID:        m.ID,
		CreatedAt: memo.FormatTimestamp(m.CreatedAt),
		UpdatedAt: memo.FormatTimestamp(m.UpdatedAt),
	})
	if err != nil {
		return nil, fmt.Errorf("files: serialize error: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(frontMatterDelimiter + "\n")
	sb.Write(yamlBytes)
	sb.WriteString(frontMatterDelimiter + "\n\n")
	sb.WriteString(m.Text)
	return []byte(sb.String()), nil
}
