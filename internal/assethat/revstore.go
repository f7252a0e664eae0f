package assethat

import (
	"bytes"
	"encoding/gob"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

const (
	filePrefix   = "f:"
	bundlePrefix = "b:"
)

func fileStoreKey(pathsKey string) string  { return filePrefix + pathsKey }
func bundleStoreKey(memoKey string) string { return bundlePrefix + memoKey }

type revisionRecord struct {
	Token    string
	StoredAt int64 // unix seconds
}

// revisionSnapshot is a leveldb directory of warmed revision tokens.
//
// The database is never held open: Load opens it read-only (shared lock)
// and Save opens it writable (exclusive lock), each only for the duration
// of the call. Any number of processes can load the same snapshot; a Save
// running at the same moment makes a Load fail, and the caller falls back
// to computing tokens itself.
type revisionSnapshot struct {
	path string
}

// Load returns every persisted token keyed by its store key. A missing
// directory is an empty snapshot.
func (s revisionSnapshot) Load() (map[string]string, error) {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	db, err := leveldb.OpenFile(s.path, &opt.Options{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer db.Close()

	out := map[string]string{}
	it := db.NewIterator(nil, nil)
	defer it.Release()
	for it.Next() {
		var rec revisionRecord
		if err := decodeGob(it.Value(), &rec); err != nil {
			continue
		}
		out[string(it.Key())] = rec.Token
	}
	return out, it.Error()
}

// Save replaces the snapshot with recs in one batch.
func (s revisionSnapshot) Save(recs map[string]string) (err error) {
	db, err := leveldb.OpenFile(s.path, nil)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); err == nil {
			err = cerr
		}
	}()

	batch := new(leveldb.Batch)
	it := db.NewIterator(nil, nil)
	for it.Next() {
		if _, keep := recs[string(it.Key())]; !keep {
			batch.Delete(append([]byte(nil), it.Key()...))
		}
	}
	it.Release()
	if err := it.Error(); err != nil {
		return err
	}

	now := time.Now().Unix()
	for k, tok := range recs {
		b, err := encodeGob(revisionRecord{Token: tok, StoredAt: now})
		if err != nil {
			return err
		}
		batch.Put([]byte(k), b)
	}
	return db.Write(batch, &opt.WriteOptions{Sync: true})
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}
