// Package inbox turns files dropped into the data directory into human input
// and control signals for a running crew session.
//
// Layout under the data directory:
//
//	inbox/<topic>.md   human input for a topic; consumed (deleted) once read
//	signals/stop       stop the session after running turns finish
//	signals/pause      pause dequeueing while the file exists
package inbox

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	inboxDir   = "inbox"
	signalsDir = "signals"
	inputExt   = ".md"

	// SignalStop is the stop signal file name.
	SignalStop = "stop"
	// SignalPause is the pause signal file name.
	SignalPause = "pause"
)

// Input is one consumed inbox file.
type Input struct {
	Topic string
	Text  string
}

// Signal reports a signal file appearing (On) or disappearing.
type Signal struct {
	Name string
	On   bool
}

// Inbox watches the inbox and signals directories.
type Inbox struct {
	root string

	inputs  chan Input
	signals chan Signal

	// consumeMu serializes reading and deleting inbox files so the watcher
	// and Scan never deliver the same file twice.
	consumeMu sync.Mutex

	mu      sync.RWMutex
	stopped bool
	paused  bool

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// New creates the inbox directories under dataDir and starts watching them.
// Without a working watcher the inbox still works through Scan.
func New(dataDir string) (*Inbox, error) {
	for _, dir := range []string{filepath.Join(dataDir, inboxDir), filepath.Join(dataDir, signalsDir)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	in := &Inbox{
		root:    dataDir,
		inputs:  make(chan Input, 64),
		signals: make(chan Signal, 16),
		done:    make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("[inbox] file watcher unavailable, falling back to polling: %v", err)
		return in, nil
	}
	for _, dir := range []string{in.dir(inboxDir), in.dir(signalsDir)} {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			log.Printf("[inbox] cannot watch %s, falling back to polling: %v", dir, err)
			return in, nil
		}
	}
	in.watcher = watcher

	in.wg.Add(1)
	go in.watch()
	return in, nil
}

func (in *Inbox) dir(name string) string {
	return filepath.Join(in.root, name)
}

// InputPath returns the inbox file for a topic.
func InputPath(dataDir, topic string) string {
	return filepath.Join(dataDir, inboxDir, topic+inputExt)
}

// SignalPath returns the path of a signal file.
func SignalPath(dataDir, name string) string {
	return filepath.Join(dataDir, signalsDir, name)
}

// Inputs returns consumed inbox files in arrival order.
func (in *Inbox) Inputs() <-chan Input { return in.inputs }

// Signals returns signal changes.
func (in *Inbox) Signals() <-chan Signal { return in.signals }

// Watching reports whether fsnotify events are being delivered.
func (in *Inbox) Watching() bool { return in.watcher != nil }

func (in *Inbox) watch() {
	defer in.wg.Done()
	for {
		select {
		case <-in.done:
			return
		case event, ok := <-in.watcher.Events:
			if !ok {
				return
			}
			in.handle(event)
		case err, ok := <-in.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[inbox] watcher error: %v", err)
		}
	}
}

func (in *Inbox) handle(event fsnotify.Event) {
	dir := filepath.Base(filepath.Dir(event.Name))
	created := event.Op&(fsnotify.Create|fsnotify.Write) != 0
	removed := event.Op&(fsnotify.Remove|fsnotify.Rename) != 0

	switch dir {
	case inboxDir:
		if created {
			in.consume(event.Name)
		}
	case signalsDir:
		if created || removed {
			// Events can arrive late; the file's presence is the truth.
			_, err := os.Stat(event.Name)
			in.setSignal(filepath.Base(event.Name), err == nil)
		}
	}
}

// Scan consumes inbox files already present and syncs signal state with the
// signal files on disk. Call it at startup and, without a watcher, periodically.
func (in *Inbox) Scan() error {
	entries, err := os.ReadDir(in.dir(inboxDir))
	if err != nil {
		return fmt.Errorf("read inbox: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			in.consume(filepath.Join(in.dir(inboxDir), e.Name()))
		}
	}
	for _, name := range []string{SignalStop, SignalPause} {
		_, err := os.Stat(SignalPath(in.root, name))
		in.setSignal(name, err == nil)
	}
	return nil
}

// consume reads and deletes one inbox file and publishes it as input.
func (in *Inbox) consume(path string) {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, inputExt) || strings.HasPrefix(name, ".") {
		return
	}
	topic := strings.TrimSuffix(name, inputExt)

	in.consumeMu.Lock()
	data, err := os.ReadFile(path)
	if err == nil {
		err = os.Remove(path)
	}
	in.consumeMu.Unlock()
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err != nil {
		log.Printf("[inbox] cannot consume %s: %v", path, err)
		return
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return
	}
	select {
	case in.inputs <- Input{Topic: topic, Text: text}:
	case <-in.done:
	}
}

func (in *Inbox) setSignal(name string, on bool) {
	in.mu.Lock()
	var changed bool
	switch name {
	case SignalStop:
		// Stop is permanent once seen.
		changed = on && !in.stopped
		in.stopped = in.stopped || on
	case SignalPause:
		changed = in.paused != on
		in.paused = on
	default:
		in.mu.Unlock()
		return
	}
	in.mu.Unlock()

	if !changed {
		return
	}
	log.Printf("[inbox] signal %s on=%v", name, on)
	select {
	case in.signals <- Signal{Name: name, On: on}:
	case <-in.done:
	}
}

// ShouldStop returns true if a stop signal has been seen.
func (in *Inbox) ShouldStop() bool {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.stopped
}

// Paused returns true while the pause signal file exists.
func (in *Inbox) Paused() bool {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.paused
}

// Close stops the watcher. Channels are left open.
func (in *Inbox) Close() error {
	select {
	case <-in.done:
		return nil
	default:
	}
	close(in.done)
	var err error
	if in.watcher != nil {
		err = in.watcher.Close()
	}
	in.wg.Wait()
	return err
}

// Submit writes human input for a topic into the inbox. The file is written
// under a temporary name and renamed, so the watcher never sees a partial write.
// Text already waiting for the topic is kept and the new text appended.
func Submit(dataDir, topic, text string) error {
	if strings.ContainsAny(topic, `/\`) || topic == "" {
		return fmt.Errorf("invalid topic %q", topic)
	}
	dir := filepath.Join(dataDir, inboxDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}

	final := InputPath(dataDir, topic)
	if prev, err := os.ReadFile(final); err == nil && len(strings.TrimSpace(string(prev))) > 0 {
		text = strings.TrimSpace(string(prev)) + "\n\n" + text
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%d.tmp", topic, time.Now().UnixNano()))
	if err := os.WriteFile(tmp, []byte(text+"\n"), 0644); err != nil {
		return fmt.Errorf("write input: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publish input: %w", err)
	}
	return nil
}

// SendSignal creates a signal file.
func SendSignal(dataDir, name string) error {
	path := SignalPath(dataDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create signals dir: %w", err)
	}
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

// ClearSignal removes one signal file. A missing file is not an error.
func ClearSignal(dataDir, name string) error {
	if err := os.Remove(SignalPath(dataDir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear signal %s: %w", name, err)
	}
	return nil
}

// ClearSignals removes all signal files.
func ClearSignals(dataDir string) {
	os.Remove(SignalPath(dataDir, SignalStop))
	os.Remove(SignalPath(dataDir, SignalPause))
}
