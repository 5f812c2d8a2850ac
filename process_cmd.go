package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/voxcast/internal/artifact"
	"github.com/dgnsrekt/voxcast/internal/batch"
	"github.com/dgnsrekt/voxcast/tts"
	"github.com/dgnsrekt/voxcast/ui"
)

var (
	mappingFile string
	useTUI      bool
	retryFailed bool
	copyPath    bool

	processCmd = &cobra.Command{
		Use:   "process SCRIPT",
		Short: "Synthesize every line of a dialogue script",
		Long: paragraph(fmt.Sprintf("\n%s a YAML or JSON dialogue script into one audio file per line. "+
			"Press ctrl+c to stop after the line in progress.", keyword("Voice"))),
		Example: paragraph("voxcast process pilot.yml --mapping voices.yml\nvoxcast process pilot.yml --engine mock --tui"),
		Args:    cobra.ExactArgs(1),
		RunE:    runProcess,
	}
)

func init() {
	processCmd.Flags().StringVarP(&mappingFile, "mapping", "m", "", "speaker to voice mapping file")
	processCmd.Flags().StringP("output", "o", "", "output directory")
	processCmd.Flags().StringP("engine", "e", "", "synthesis engine (elevenlabs, mock)")
	processCmd.Flags().BoolVarP(&useTUI, "tui", "t", false, "show interactive progress")
	processCmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "retry failed lines once after the run")
	processCmd.Flags().BoolVar(&copyPath, "copy-path", false, "copy the episode directory to the clipboard")

	_ = viper.BindPFlag("output_dir", processCmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("engine", processCmd.Flags().Lookup("engine"))
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sc, mapping, err := loadScript(args[0], mappingFile)
	if err != nil {
		return err
	}

	synth, err := openSynthesizer(cfg)
	if err != nil {
		return err
	}
	defer synth.Close() //nolint:errcheck

	engine := newEngine(cfg, synth, log.Default())

	var (
		mu         sync.Mutex
		completion *batch.Completion
	)
	engine.On(batch.EventComplete, func(ev batch.Event) {
		mu.Lock()
		completion = ev.Completion
		mu.Unlock()
	})

	res, err := engine.Initialize(sc.Dialogues, mapping, sc.EpisodeInfo(args[0]))
	if err != nil {
		return err
	}
	log.Info("Queued", "items", res.TotalItems, "skipped", len(res.Skipped), "dir", res.EpisodeDir)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		engine.Cancel()
	}()

	if useTUI {
		err = processInteractive(engine, sc.EpisodeInfo(args[0]).Name)
	} else {
		err = processPlain(engine)
	}
	if err != nil {
		return err
	}

	if copyPath {
		if err := clipboard.WriteAll(res.EpisodeDir); err != nil {
			log.Warn("Could not copy path to clipboard", "err", err)
		}
	}

	mu.Lock()
	done := completion
	mu.Unlock()
	return printSummary(engine, done)
}

// processPlain runs the job and logs progress line by line.
func processPlain(engine *batch.Engine) error {
	unsubscribe := engine.Subscribe(func(ev batch.Event) {
		switch ev.Type {
		case batch.EventItemComplete:
			log.Info("Done", "item", ev.Item.ID, "progress", fmt.Sprintf("%d/%d", ev.Stats.Completed+ev.Stats.Failed, ev.Stats.Total))
		case batch.EventItemError:
			log.Error("Failed", "item", ev.Item.ID, "attempts", ev.Item.Attempts, "err", ev.Item.Error)
		case batch.EventCancelled:
			log.Warn("Cancelled, finishing the line in progress")
		}
	})
	defer unsubscribe()

	if err := engine.Start(); err != nil {
		return err
	}
	if err := engine.Wait(context.Background()); err != nil {
		return err
	}

	if retryFailed && engine.State() == tts.StateCompleted && engine.Stats().Failed > 0 {
		n, err := engine.RetryFailed()
		if err != nil {
			return err
		}
		log.Info("Retrying failed lines", "items", n)
		if err := engine.Wait(context.Background()); err != nil {
			return err
		}
	}
	return nil
}

// processInteractive runs the job under the progress TUI. Logs go to the
// log file while the TUI owns the terminal.
func processInteractive(engine *batch.Engine, title string) error {
	closeLog, err := logToFile()
	if err != nil {
		return err
	}
	defer closeLog() //nolint:errcheck

	// Item events may be dropped when the view falls behind; stats are
	// polled separately.
	events := make(chan batch.Event, 64)
	unsubscribe := engine.Subscribe(func(ev batch.Event) {
		select {
		case events <- ev:
		default:
		}
	})
	defer unsubscribe()

	if err := engine.Start(); err != nil {
		return err
	}
	if err := ui.Run(title, engine, events, tea.WithOutput(os.Stderr)); err != nil {
		engine.Cancel()
		return err
	}
	return engine.Wait(context.Background())
}

func printSummary(engine *batch.Engine, done *batch.Completion) error {
	st := engine.Stats()

	if done == nil || engine.State() != tts.StateCompleted {
		fmt.Fprintf(os.Stderr, "%s %d of %d lines written to %s\n",
			keyword(engine.State().String()), st.Completed, st.Total, engine.EpisodeDir())
		if engine.State() == tts.StateCancelled {
			return errors.New("processing cancelled")
		}
		return nil
	}

	out, err := renderMarkdown(metadataMarkdown(done.Metadata, done.EpisodeDir))
	if err != nil {
		return err
	}
	fmt.Print(out)
	fmt.Println(faint("  metadata: " + done.MetadataPath))

	if st.Failed > 0 {
		return fmt.Errorf("%d line(s) failed; see %s", st.Failed, artifact.MetadataFile)
	}
	return nil
}
