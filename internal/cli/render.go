package cli

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/reglet-dev/dlhost/domain/entities"
	"github.com/reglet-dev/dlhost/domain/errors"
	"golang.org/x/term"
)

// Output modes for buffer contents.
const (
	ContentsAuto = "auto"
	ContentsHex  = "hex"
	ContentsRaw  = "raw"
)

// view renders command output to one writer.
type view struct {
	w        io.Writer
	contents string

	title lipgloss.Style
	ok    lipgloss.Style
	warn  lipgloss.Style
	fail  lipgloss.Style
	dim   lipgloss.Style
}

func newView(w io.Writer, contents string) *view {
	r := lipgloss.NewRenderer(w)
	return &view{
		w:        w,
		contents: contents,
		title:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		ok:       r.NewStyle().Foreground(lipgloss.Color("46")),
		warn:     r.NewStyle().Foreground(lipgloss.Color("214")),
		fail:     r.NewStyle().Foreground(lipgloss.Color("196")),
		dim:      r.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // G115: file descriptors fit in int
}

func (v *view) line(format string, args ...any) {
	_, _ = fmt.Fprintf(v.w, format+"\n", args...)
}

func (v *view) success(format string, args ...any) {
	v.line("%s %s", v.ok.Render("ok"), fmt.Sprintf(format, args...))
}

// failure prints err with its kind. Declined exchanges are soft failures.
func (v *view) failure(err error) {
	d := errors.ToErrorDetail(err)
	label := v.fail.Render("error")
	if errors.KindOf(err) == errors.KindExchangeDeclined {
		label = v.warn.Render("declined")
	}
	v.line("%s %s: %s", label, d.Type, d.Message)
}

func (v *view) status(st entities.Status, rss uint64) {
	v.line("%s", v.title.Render("plugin host"))
	rows := [][2]string{
		{"state", st.State.String()},
		{"generation", fmt.Sprint(st.Generation)},
	}
	if st.State == entities.StateLoaded {
		rows = append(rows,
			[2]string{"path", st.Path},
			[2]string{"backend", st.Backend},
			[2]string{"loaded", st.LoadedAt.Format("2006-01-02T15:04:05Z07:00")},
		)
		if st.Digest != "" {
			rows = append(rows, [2]string{"digest", st.Digest})
		}
	}
	for _, sym := range st.Symbols {
		rows = append(rows, [2]string{"symbol", fmt.Sprintf("%s (%s, generation %d)", sym.Name, sym.Kind, sym.Generation)})
	}
	if rss > 0 {
		rows = append(rows, [2]string{"rss", fmt.Sprintf("%d KiB", rss/1024)})
	}
	for _, r := range rows {
		v.line("  %s %s", v.dim.Render(fmt.Sprintf("%-10s", r[0])), r[1])
	}
}

// exchange prints an exchange result. Contents are shown only for override
// calls.
func (v *view) exchange(res entities.ExchangeResult) {
	if !res.Override {
		v.success("probe: plugin needs %d bytes (capacity %d)", res.Count, res.Capacity)
		return
	}
	note := ""
	if res.Exact {
		note = v.warn.Render(" (buffer filled exactly; output may be truncated)")
	}
	v.success("override: plugin wrote %d of %d bytes%s", res.Count, res.Capacity, note)
	v.contentsOf(res.Contents)
}

func (v *view) contentsOf(data []byte) {
	if len(data) == 0 {
		return
	}
	mode := v.contents
	if mode == "" || mode == ContentsAuto {
		mode = ContentsRaw
		if isTerminal(v.w) {
			mode = ContentsHex
		}
	}
	if mode == ContentsHex {
		_, _ = io.WriteString(v.w, hex.Dump(data))
		return
	}
	_, _ = v.w.Write(data)
	if !strings.HasSuffix(string(data), "\n") {
		_, _ = io.WriteString(v.w, "\n")
	}
}
