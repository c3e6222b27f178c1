package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/custodia-labs/studyrag/internal/core/domain"
)

// reporter shows ingestion progress.
type reporter interface {
	Update(st *domain.IngestionStatus)
	Finish()
}

// newReporter returns a progress bar on an interactive terminal and a
// line-per-change reporter otherwise.
func newReporter(w io.Writer, title string) reporter {
	if isInteractive(w) {
		return &barReporter{bar: progressbar.NewOptions(domain.ProgressComplete,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(title),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)}
	}
	return &lineReporter{w: w, title: title, last: -1}
}

func isInteractive(w io.Writer) bool {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

type barReporter struct {
	bar *progressbar.ProgressBar
}

func (r *barReporter) Update(st *domain.IngestionStatus) {
	_ = r.bar.Set(st.ProgressPercent)
}

func (r *barReporter) Finish() {
	_ = r.bar.Finish()
}

type lineReporter struct {
	w     io.Writer
	title string
	last  int
}

func (r *lineReporter) Update(st *domain.IngestionStatus) {
	if st.ProgressPercent == r.last {
		return
	}
	r.last = st.ProgressPercent
	fmt.Fprintf(r.w, "[%3d%%] %s: %s\n", st.ProgressPercent, r.title, st.Status)
}

func (r *lineReporter) Finish() {}
