package scoring

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/meridian-hq/ABMX/errors"
	"github.com/meridian-hq/ABMX/logger"
)

// RuleWatcher reloads an agent's rule set when the rules file changes
// on disk. A reload that fails to parse or compile keeps the running
// rules; the service never degrades because someone saved a broken
// file.
type RuleWatcher struct {
	path    string
	agent   *Agent
	watcher *fsnotify.Watcher
	log     *zap.SugaredLogger

	mu             sync.Mutex
	debounceTimer  *time.Timer
	debouncePeriod time.Duration
}

// NewRuleWatcher watches path and feeds reloads into agent. Call Start
// to begin watching and Stop to release the watcher.
func NewRuleWatcher(path string, agent *Agent) (*RuleWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create rules watcher")
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, errors.Wrapf(err, "watch rules file %s", path)
	}
	return &RuleWatcher{
		path:           path,
		agent:          agent,
		watcher:        watcher,
		log:            logger.ComponentLogger("scoring"),
		debouncePeriod: 500 * time.Millisecond,
	}, nil
}

// Start begins watching for rules file changes.
func (rw *RuleWatcher) Start() {
	go rw.watchLoop()
}

func (rw *RuleWatcher) watchLoop() {
	for {
		select {
		case event, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			// Editors save via write or rename-over, so watch both.
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				rw.log.Debugw("rules file changed",
					"file", event.Name,
					"op", event.Op.String())
				rw.scheduleReload()
			}
		case err, ok := <-rw.watcher.Errors:
			if !ok {
				return
			}
			rw.log.Warnw("rules watcher error", logger.FieldError, err)
		}
	}
}

// scheduleReload debounces rapid successive saves into one reload.
func (rw *RuleWatcher) scheduleReload() {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.debounceTimer != nil {
		rw.debounceTimer.Stop()
	}
	rw.debounceTimer = time.AfterFunc(rw.debouncePeriod, rw.reload)
}

func (rw *RuleWatcher) reload() {
	rs, err := LoadRules(rw.path)
	if err != nil {
		rw.log.Errorw("rules reload failed, keeping active rules",
			logger.FieldPath, rw.path,
			logger.FieldError, err)
		return
	}
	rw.agent.Reload(rs)
	rw.log.Infow("rules reloaded",
		logger.FieldPath, rw.path,
		"tables", len(rs.Tables))
}

// Stop stops watching for rules changes.
func (rw *RuleWatcher) Stop() error {
	return rw.watcher.Close()
}
