package snapshot

import (
	"bufio"
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/Luismorlan/powledger/model"
)

// FileStore keeps the snapshot in a text file of three lines: the chain,
// the pending transactions and the peer addresses.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Path() string {
	return f.path
}

// Save writes to a temporary file first so a crash never leaves a half
// written snapshot behind.
func (f *FileStore) Save(s *model.Snapshot) error {
	docs, err := encode(s)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	buf.Write(docs[0])
	buf.WriteByte('\n')
	buf.Write(docs[1])
	buf.WriteByte('\n')
	buf.Write(docs[2])

	tmp, err := ioutil.TempFile(filepath.Dir(f.path), filepath.Base(f.path)+".tmp")
	if err != nil {
		return fmt.Errorf("saving failed: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("saving failed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("saving failed: %w", err)
	}
	return os.Rename(tmp.Name(), f.path)
}

func (f *FileStore) Load() (*model.Snapshot, error) {
	content, err := ioutil.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var docs [3][]byte
	sc := bufio.NewScanner(bytes.NewReader(content))
	// A long chain is a single long line.
	sc.Buffer(make([]byte, 0, 64*1024), len(content)+1)
	n := 0
	for sc.Scan() {
		if n == len(docs) {
			return nil, fmt.Errorf("%w: more than %d lines", ErrCorrupted, len(docs))
		}
		docs[n] = append([]byte{}, sc.Bytes()...)
		n++
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if n != len(docs) {
		return nil, fmt.Errorf("%w: expected %d lines, got %d", ErrCorrupted, len(docs), n)
	}
	return decode(docs)
}

func (f *FileStore) Close() error {
	return nil
}
