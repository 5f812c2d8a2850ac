package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dgnsrekt/voxcast/internal/artifact"
	"github.com/dgnsrekt/voxcast/utils"
)

var reportCmd = &cobra.Command{
	Use:     "report EPISODE_DIR",
	Short:   "Summarize a processed episode",
	Long:    paragraph(fmt.Sprintf("\n%s the metadata.json an episode run left behind.", keyword("Render"))),
	Example: paragraph("voxcast report ~/voxcast/Pilot_2024-01-02"),
	Args:    cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		dir := utils.ExpandPath(args[0])
		md, err := artifact.ReadMetadata(dir)
		if err != nil {
			return fmt.Errorf("unable to read metadata: %w", err)
		}

		out, err := renderMarkdown(metadataMarkdown(md, dir))
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

// renderMarkdown renders md for stdout, using the notty style when stdout
// is not a terminal.
func renderMarkdown(md string) (string, error) {
	isTerminal := term.IsTerminal(int(os.Stdout.Fd()))

	width := 80
	if isTerminal {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
			width = min(w, 120)
		}
	}

	style := styles.NoTTYStyle
	if isTerminal {
		style = styles.LightStyle
		if termenv.HasDarkBackground() {
			style = styles.DarkStyle
		}
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithColorProfile(lipgloss.ColorProfile()),
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("unable to create renderer: %w", err)
	}

	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("unable to render markdown: %w", err)
	}
	return out, nil
}

// metadataMarkdown formats a run summary.
func metadataMarkdown(md artifact.Metadata, dir string) string {
	var b strings.Builder
	st := md.Stats

	fmt.Fprintf(&b, "# %s\n\n", md.Episode)
	fmt.Fprintf(&b, "Processed %s in %s.\n\n",
		humanize.Time(md.ProcessedAt),
		(time.Duration(md.ProcessingTime) * time.Millisecond).Round(time.Second))

	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Items | %d |\n", st.Total)
	fmt.Fprintf(&b, "| Completed | %d |\n", st.Completed)
	fmt.Fprintf(&b, "| Failed | %d |\n", st.Failed)
	fmt.Fprintf(&b, "| Characters | %s |\n", humanize.Comma(int64(st.TotalCharacters)))
	fmt.Fprintf(&b, "| Audio | %s |\n", humanize.Bytes(uint64(st.AudioBytes)))
	fmt.Fprintf(&b, "| Directory | `%s` |\n\n", dir)

	if len(md.Items.Failed) > 0 {
		b.WriteString("## Failed\n\n")
		for _, item := range md.Items.Failed {
			fmt.Fprintf(&b, "- **%s** (%d attempts): %s\n", item.ID, item.Attempts, item.Error)
		}
		b.WriteString("\n")
	}

	if len(md.Items.Processed) > 0 {
		b.WriteString("## Files\n\n")
		for _, item := range md.Items.Processed {
			fmt.Fprintf(&b, "- `%s` %s, %s chars\n", item.Filename,
				humanize.Bytes(uint64(item.AudioSize)), humanize.Comma(int64(item.CharacterCount)))
		}
	}

	return b.String()
}
