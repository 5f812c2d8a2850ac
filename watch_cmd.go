package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/voxcast/internal/batch"
	"github.com/dgnsrekt/voxcast/internal/session"
	"github.com/dgnsrekt/voxcast/tts"
	"github.com/dgnsrekt/voxcast/utils"
)

const watchDebounce = 500 * time.Millisecond

var (
	watchMapping string

	watchCmd = &cobra.Command{
		Use:   "watch DIR",
		Short: "Process scripts as they appear in a directory",
		Long: paragraph(fmt.Sprintf("\n%s a directory and process every script written to it. "+
			"Each script runs as its own session.", keyword("Watch"))),
		Example: paragraph("voxcast watch ./scripts --mapping voices.yml"),
		Args:    cobra.ExactArgs(1),
		RunE:    runWatch,
	}
)

func init() {
	watchCmd.Flags().StringVarP(&watchMapping, "mapping", "m", "", "speaker to voice mapping file")
}

func isScriptFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yml", ".yaml", ".json":
		return true
	}
	return false
}

// watcher debounces file events and starts one job per script.
type watcher struct {
	sessions *session.Registry

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
	wg     sync.WaitGroup
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := utils.ExpandPath(args[0])
	if !utils.IsDir(dir) {
		return fmt.Errorf("%s is not a directory", dir)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	synth, err := openSynthesizer(cfg)
	if err != nil {
		return err
	}
	defer synth.Close() //nolint:errcheck

	w := &watcher{timers: make(map[string]*time.Timer)}
	w.sessions = session.NewRegistry(func(key string) *batch.Engine {
		return newEngine(cfg, synth, log.With("session", key))
	}, log.Default())

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to create watcher: %w", err)
	}
	defer fsw.Close() //nolint:errcheck

	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("unable to watch %s: %w", dir, err)
	}
	log.Info("Watching for scripts", "dir", dir)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			if n := w.sessions.Active(); n > 0 {
				log.Info("Cancelling active sessions", "count", n)
			}
			w.sessions.CancelAll()
			w.wg.Wait()
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isScriptFile(event.Name) {
				continue
			}
			w.schedule(event.Name)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Error("Watcher error", "err", err)
		}
	}
}

// schedule processes path once writes to it have settled.
func (w *watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if t, ok := w.timers[path]; ok {
		t.Reset(watchDebounce)
		return
	}
	w.timers[path] = time.AfterFunc(watchDebounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.process(path)
	})
}

func (w *watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *watcher) process(path string) {
	key := filepath.Base(path)
	logger := log.With("session", key)

	sc, mapping, err := loadScript(path, watchMapping)
	if err != nil {
		logger.Error("Skipping script", "err", err)
		return
	}

	engine := w.sessions.Engine(key)
	res, err := engine.Initialize(sc.Dialogues, mapping, sc.EpisodeInfo(path))
	if errors.Is(err, tts.ErrJobActive) {
		logger.Warn("Script changed while its job is running; ignoring")
		return
	}
	if err != nil {
		logger.Error("Unable to queue script", "err", err)
		return
	}

	if err := engine.Start(); err != nil {
		logger.Error("Unable to start", "err", err)
		return
	}
	logger.Info("Processing", "items", res.TotalItems, "dir", res.EpisodeDir)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		engine.Cancel()
		return
	}
	w.wg.Add(1)
	w.mu.Unlock()
	go func() {
		defer w.wg.Done()
		if err := engine.Wait(context.Background()); err != nil {
			logger.Error("Job failed", "err", err)
			return
		}
		st := engine.Stats()
		logger.Info("Finished", "state", st.State, "completed", st.Completed, "failed", st.Failed)
	}()
}
