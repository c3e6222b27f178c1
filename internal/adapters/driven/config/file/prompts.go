package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
	"github.com/custodia-labs/studyrag/internal/logger"
)

var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore serves the answer templates, preferring edited copies in a
// prompts directory over the built-in ones. The directory is seeded with the
// defaults on first use. A copy that lost or gained placeholders is ignored
// with a warning, since formatting it would garble the prompt.
type PromptStore struct {
	dir string

	mu      sync.Mutex
	cache   map[string]string
	seeded  bool
	seedErr error
}

// Built-in templates, also written out as the initial editable copies.
//
//nolint:lll
var defaultPrompts = map[string]string{
	driven.PromptAnswerSystem: `You are a study assistant answering questions about a single document.

Rules:
1. Use only the numbered excerpts you are given. Do not use outside knowledge.
2. Cite every claim with the excerpt label it came from, for example [Citation 1].
3. Never cite a label that was not provided.
4. If the excerpts do not contain the answer, reply exactly: %s
5. Be concise and keep the document's terminology.`,

	driven.PromptAnswerUser: `Document: %s

Excerpts:

%s

Question: %s

Answer using only the excerpts above, citing them as [Citation N].`,
}

// templateArgs is how many %s verbs the answer generator fills per template.
var templateArgs = map[string]int{
	driven.PromptAnswerSystem: 1,
	driven.PromptAnswerUser:   3,
}

// NewPromptStore creates a store over dir, or ~/.studyrag/prompts when empty.
// Nothing is read or written until the first Load.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		base, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(base, "prompts")
	}
	return &PromptStore{dir: dir, cache: make(map[string]string)}, nil
}

// Load returns the template called name.
func (s *PromptStore) Load(name string) (string, error) {
	builtin, ok := defaultPrompts[name]
	if !ok {
		return "", fmt.Errorf("load prompt %q: unknown template", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.cache[name]; ok {
		return p, nil
	}

	if !s.seeded {
		s.seedErr = s.seed()
		s.seeded = true
		if s.seedErr != nil {
			logger.Warn("prompts: %v, using built-in templates", s.seedErr)
		}
	}

	prompt := builtin
	if s.seedErr == nil {
		if custom, err := s.read(name); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				logger.Warn("prompts: reading %s: %v, using built-in template", name, err)
			}
		} else if err := checkTemplate(name, custom); err != nil {
			logger.Warn("prompts: %v, using built-in template", err)
		} else {
			prompt = custom
		}
	}
	s.cache[name] = prompt
	return prompt, nil
}

// Reload drops cached templates so edits are picked up.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompts directory.
func (s *PromptStore) Dir() string {
	return s.dir
}

// seed creates the directory and writes any missing default files.
func (s *PromptStore) seed() error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("create prompt directory: %w", err)
	}
	for name, content := range defaultPrompts {
		path := filepath.Join(s.dir, name+".txt")
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			if err := os.WriteFile(path, []byte(content+"\n"), 0600); err != nil {
				return fmt.Errorf("write default prompt %q: %w", name, err)
			}
		}
	}
	return s.createReadme()
}

func (s *PromptStore) read(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name+".txt"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// checkTemplate rejects a template whose verbs no longer match its arguments.
func checkTemplate(name, text string) error {
	n, stray := placeholders(text)
	if stray != "" {
		return fmt.Errorf("%s.txt uses %s, only %%s is filled in", name, stray)
	}
	if want := templateArgs[name]; n != want {
		return fmt.Errorf("%s.txt has %d %%s placeholders, want %d", name, n, want)
	}
	return nil
}

// placeholders counts %s verbs and reports the first other verb found.
// %% is a literal percent sign.
func placeholders(text string) (n int, stray string) {
	for i := 0; i < len(text)-1; i++ {
		if text[i] != '%' {
			continue
		}
		switch text[i+1] {
		case '%':
		case 's':
			n++
		default:
			if stray == "" {
				stray = text[i : i+2]
			}
		}
		i++
	}
	return n, stray
}

// createReadme documents the placeholders next to the templates.
func (s *PromptStore) createReadme() error {
	path := filepath.Join(s.dir, "README.md")
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	content := `# studyrag prompts

Templates used to generate grounded answers.

## Files

- ` + "`answer_system.txt`" + ` - Rules the model follows. One ` + "`%s`" + ` receives the
  phrase used when the excerpts do not contain the answer.
- ` + "`answer_user.txt`" + ` - Frames the question. Three ` + "`%s`" + ` placeholders receive,
  in order, the document title, the labelled excerpts and the question.

## Customisation

Edit a file to change how answers are phrased. Changes take effect the next
time a command starts. Delete a file to restore its default.

Keep every placeholder, in order. A file with the wrong number of
placeholders is ignored and the built-in template is used instead. Excerpts
are always labelled [Citation N]; the rules should keep asking for those labels.
`
	return os.WriteFile(path, []byte(content), 0600)
}
