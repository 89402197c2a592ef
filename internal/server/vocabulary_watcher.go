package server

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"aligncv/internal/ai"
	"aligncv/internal/app"
	"aligncv/internal/config"
	"aligncv/internal/errors"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounceDelay = time.Second

// FileWatcher watches a fixed set of files and calls onChange, debounced,
// when any of them is written, created or replaced.
type FileWatcher struct {
	mu sync.RWMutex

	files       []string
	lastModTime map[string]time.Time

	fsWatcher     *fsnotify.Watcher
	debounceDelay time.Duration
	debounceTimer *time.Timer

	stopChan   chan struct{}
	reloadChan chan struct{}

	onChange func()
	logger   *errors.Logger

	running bool
}

// NewFileWatcher creates a watcher for files. Empty paths are ignored.
func NewFileWatcher(files []string, debounceDelay time.Duration, onChange func(), logger *errors.Logger) *FileWatcher {
	if debounceDelay <= 0 {
		debounceDelay = defaultDebounceDelay
	}
	if logger == nil {
		logger = errors.NewNopLogger()
	}

	watched := make([]string, 0, len(files))
	for _, f := range files {
		if f != "" && !slices.Contains(watched, f) {
			watched = append(watched, f)
		}
	}

	return &FileWatcher{
		files:         watched,
		lastModTime:   make(map[string]time.Time),
		debounceDelay: debounceDelay,
		stopChan:      make(chan struct{}),
		reloadChan:    make(chan struct{}, 1),
		onChange:      onChange,
		logger:        logger,
	}
}

// Start begins watching. It fails if the watcher is already running.
func (fw *FileWatcher) Start() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.running {
		return fmt.Errorf("file watcher is already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	fw.fsWatcher = watcher

	for _, file := range fw.files {
		if stat, err := os.Stat(file); err == nil {
			fw.lastModTime[file] = stat.ModTime()
		}
		if err := fw.watch(file); err != nil {
			fw.logger.Warn("Failed to watch file", "file", file, "error", err.Error())
		}
	}

	fw.running = true
	go fw.watchLoop()

	fw.logger.Info("File watcher started",
		"files", fw.files,
		"debounce_delay", fw.debounceDelay)
	return nil
}

// Stop stops the watcher. Stopping a stopped watcher is a no-op.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if !fw.running {
		return nil
	}

	close(fw.stopChan)
	if fw.debounceTimer != nil {
		fw.debounceTimer.Stop()
	}
	fw.running = false

	if err := fw.fsWatcher.Close(); err != nil {
		fw.logger.LogError(err, "Failed to close file system watcher")
		return err
	}

	fw.logger.Info("File watcher stopped")
	return nil
}

// watch adds the file's directory, which also catches editors and config
// management tools that replace files by rename.
func (fw *FileWatcher) watch(file string) error {
	dir := filepath.Dir(file)
	if err := fw.fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}
	return nil
}

func (fw *FileWatcher) watchLoop() {
	for {
		select {
		case event, ok := <-fw.fsWatcher.Events:
			if !ok {
				return
			}
			if fw.isRelevant(event) {
				fw.scheduleReload()
			}

		case err, ok := <-fw.fsWatcher.Errors:
			if !ok {
				return
			}
			fw.logger.LogError(err, "File watcher error")

		case <-fw.reloadChan:
			if fw.hasAnyFileChanged() {
				fw.logger.Info("Watched files changed, reloading")
				fw.onChange()
			}

		case <-fw.stopChan:
			return
		}
	}
}

func (fw *FileWatcher) isRelevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	return slices.ContainsFunc(fw.files, func(file string) bool {
		return filepath.Clean(event.Name) == filepath.Clean(file)
	})
}

// hasAnyFileChanged compares modification times with the last seen ones
func (fw *FileWatcher) hasAnyFileChanged() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	changed := false
	for _, file := range fw.files {
		stat, err := os.Stat(file)
		if err != nil {
			continue
		}
		if last, ok := fw.lastModTime[file]; !ok || stat.ModTime().After(last) {
			fw.lastModTime[file] = stat.ModTime()
			changed = true
		}
	}
	return changed
}

func (fw *FileWatcher) scheduleReload() {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.debounceTimer != nil {
		fw.debounceTimer.Stop()
	}
	fw.debounceTimer = time.AfterFunc(fw.debounceDelay, func() {
		select {
		case fw.reloadChan <- struct{}{}:
		default:
		}
	})
}

// IsRunning returns whether the watcher is currently running
func (fw *FileWatcher) IsRunning() bool {
	fw.mu.RLock()
	defer fw.mu.RUnlock()
	return fw.running
}

// GetWatchedFiles returns the list of files being watched
func (fw *FileWatcher) GetWatchedFiles() []string {
	return slices.Clone(fw.files)
}

// startVocabularyWatcher hot-reloads matching.vocabularyFile into the
// analyzer when matching.watchVocabulary is set.
func (s *Server) startVocabularyWatcher() error {
	matching := s.AppConfig.Matching
	if !matching.WatchVocabulary || matching.VocabularyFile == "" {
		return nil
	}

	s.vocabularyWatcher = NewFileWatcher([]string{matching.VocabularyFile}, matching.DebounceDelay,
		s.reloadVocabulary, s.Logger)
	return s.vocabularyWatcher.Start()
}

// reloadVocabulary re-reads the vocabulary file. A broken file keeps the
// vocabulary in use.
func (s *Server) reloadVocabulary() {
	matching := s.AppConfig.Matching
	vocab, err := config.LoadVocabularyFile(matching.VocabularyFile)
	if err != nil {
		s.Logger.LogError(err, "Vocabulary reload failed, keeping current vocabulary",
			"file", matching.VocabularyFile)
		return
	}

	current := s.Components.Analyzer.Vocabulary()
	if len(vocab.RoleKeywords) > 0 {
		matching.RoleKeywords = vocab.RoleKeywords
	} else {
		matching.RoleKeywords = current.Roles
	}
	if len(vocab.SuggestionBlocklist) > 0 {
		matching.SuggestionBlocklist = vocab.SuggestionBlocklist
	} else {
		matching.SuggestionBlocklist = current.Blocklist
	}
	s.Components.Analyzer.SetVocabulary(app.VocabularyFromConfig(matching))
}

// startPromptWatcher reloads the optimize prompt template when a prompt file
// changes.
func (s *Server) startPromptWatcher() error {
	files := s.AppConfig.PromptFiles()
	if !s.AppConfig.AI.WatchPromptFiles || len(files) == 0 {
		return nil
	}

	s.promptWatcher = NewFileWatcher(files, s.AppConfig.Matching.DebounceDelay, s.reloadPrompts, s.Logger)
	return s.promptWatcher.Start()
}

func (s *Server) reloadPrompts() {
	if err := s.AppConfig.ReloadPrompts(); err != nil {
		s.Logger.LogError(err, "Prompt reload failed, keeping current prompts")
		return
	}
	opCfg := s.AppConfig.GetOptimizeConfig()
	s.Components.Optimizer.SetPromptTemplate(ai.OptimizePromptTemplate(&opCfg))
	s.Logger.Info("Prompt template reloaded", "files", s.AppConfig.PromptFiles())
}
