package watcher

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FileSource adapts a file on disk into a MutationSource: every write to the
// file is one mutation hint. It backs the CLI watch mode, where the "page" is
// an HTML snapshot being rewritten by another process.
type FileSource struct {
	path      string
	fw        *fsnotify.Watcher
	mutations chan Mutation
	log       *zap.Logger
}

// NewFileSource starts watching path. Close releases the underlying watcher.
func NewFileSource(path string) (*FileSource, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, eris.Wrap(err, "watcher: create file watcher")
	}
	// Watch the directory: editors replace files on save, which would drop a
	// watch on the file itself.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, eris.Wrapf(err, "watcher: watch %s", path)
	}

	f := &FileSource{
		path:      path,
		fw:        fw,
		mutations: make(chan Mutation, 16),
		log:       zap.L().With(zap.String("component", "watcher.file")),
	}
	go f.run()
	return f, nil
}

// Mutations implements MutationSource.
func (f *FileSource) Mutations() <-chan Mutation {
	return f.mutations
}

// Close stops the watcher and closes the mutation channel.
func (f *FileSource) Close() error {
	return f.fw.Close()
}

func (f *FileSource) run() {
	defer close(f.mutations)
	for {
		select {
		case ev, ok := <-f.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(f.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			select {
			case f.mutations <- Mutation{}:
			default:
				// A full buffer means an extraction is already pending.
			}
		case err, ok := <-f.fw.Errors:
			if !ok {
				return
			}
			f.log.Warn("file watch error", zap.Error(err))
		}
	}
}
