package history

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Follower streams lines appended to a history file.
type Follower struct {
	path    string
	offset  int64
	pending []byte
	emit    func(line string)
}

// Follow calls emit for every complete line appended to path until ctx is
// done. With fromStart the existing content is emitted first. The file does
// not need to exist yet. Truncation restarts from the beginning.
func Follow(ctx context.Context, path string, fromStart bool, emit func(line string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so creation and replacement are seen too.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch directory: %w", err)
	}

	f := &Follower{path: path, emit: emit}
	if !fromStart {
		if info, err := os.Stat(path); err == nil {
			f.offset = info.Size()
		}
	}
	if err := f.poll(); err != nil {
		return err
	}

	base := filepath.Base(path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				f.offset = 0
				f.pending = nil
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := f.poll(); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch history file: %w", err)
		}
	}
}

// poll reads whatever was appended since the last call.
func (f *Follower) poll() error {
	file, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open history file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat history file: %w", err)
	}
	if info.Size() < f.offset {
		f.offset = 0
		f.pending = nil
	}

	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek history file: %w", err)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read history file: %w", err)
	}
	f.offset += int64(len(data))
	f.pending = append(f.pending, data...)

	for {
		i := bytes.IndexByte(f.pending, '\n')
		if i < 0 {
			break
		}
		f.emit(string(f.pending[:i]))
		f.pending = f.pending[i+1:]
	}
	return nil
}
