package pdf

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
)

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	output []byte
	err    error
	args   []string
}

func (m *mockRunner) Run(_ context.Context, _ []byte, _ string, args ...string) ([]byte, error) {
	m.args = args
	return m.output, m.err
}

func TestExtractor_Metadata(t *testing.T) {
	e := New()
	assert.Equal(t, "pdf", e.Name())
	assert.Equal(t, []string{MIMEType}, e.SupportedMIMETypes())
	assert.Greater(t, e.Priority(), NewCLI().Priority())
}

func TestExtract_CorruptInput(t *testing.T) {
	_, err := New().Extract(context.Background(), &driven.ExtractInput{Data: []byte("%PDF-1.4 garbage"), MIMEType: MIMEType})
	assert.ErrorIs(t, err, domain.ErrCorruptFile)
}

func TestExtract_NilInput(t *testing.T) {
	_, err := New().Extract(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = NewCLI().Extract(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCLIExtract_SplitsPages(t *testing.T) {
	runner := &mockRunner{output: []byte("Page one text\n\fPage two text\f\f  Page four\n")}

	sections, err := NewCLIWithRunner(runner).Extract(context.Background(), &driven.ExtractInput{Data: []byte("%PDF")})

	require.NoError(t, err)
	require.Len(t, sections, 3)
	assert.Equal(t, 1, sections[0].Page)
	assert.Equal(t, "Page two text", sections[1].Text)
	assert.Equal(t, 4, sections[2].Page)
	assert.Equal(t, 2, sections[2].Index)
	assert.Equal(t, "Page 4", sections[2].Label())
	assert.Contains(t, runner.args, "-layout")
}

func TestCLIExtract_RunnerError(t *testing.T) {
	_, err := NewCLIWithRunner(&mockRunner{err: errors.New("exit status 1")}).
		Extract(context.Background(), &driven.ExtractInput{Data: []byte("%PDF")})
	assert.ErrorIs(t, err, domain.ErrCorruptFile)
}

func TestCLIExtract_ToolMissing(t *testing.T) {
	_, err := NewCLIWithRunner(&mockRunner{err: ErrPDFToolNotFound}).
		Extract(context.Background(), &driven.ExtractInput{Data: []byte("%PDF")})
	assert.ErrorIs(t, err, ErrPDFToolNotFound)
}
