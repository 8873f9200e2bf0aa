package snapshot

import (
	"github.com/Luismorlan/powledger/model"
	"github.com/syndtr/goleveldb/leveldb"
)

var (
	chainKey = []byte("chain")
	poolKey  = []byte("pool")
	peersKey = []byte("peers")
)

// LevelDBStore keeps the three snapshot documents under their own keys,
// written in one batch.
type LevelDBStore struct {
	db *leveldb.DB
}

func NewLevelDBStore(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDBStore{db: db}, nil
}

// Wrap an already opened database.
func NewLevelDBStoreFromDB(db *leveldb.DB) *LevelDBStore {
	return &LevelDBStore{db: db}
}

func (l *LevelDBStore) Save(s *model.Snapshot) error {
	docs, err := encode(s)
	if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	batch.Put(chainKey, docs[0])
	batch.Put(poolKey, docs[1])
	batch.Put(peersKey, docs[2])
	return l.db.Write(batch, nil)
}

func (l *LevelDBStore) Load() (*model.Snapshot, error) {
	var docs [3][]byte
	for i, key := range [][]byte{chainKey, poolKey, peersKey} {
		v, err := l.db.Get(key, nil)
		if err == leveldb.ErrNotFound {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		docs[i] = v
	}
	return decode(docs)
}

func (l *LevelDBStore) Close() error {
	return l.db.Close()
}
