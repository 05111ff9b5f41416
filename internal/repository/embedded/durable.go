package embedded

import (
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/repository/codec"
)

var docKeyPrefix = []byte("doc:")

// durableLog mirrors confirmed writes into badger so the map can be rebuilt on open.
type durableLog struct {
	db *badger.DB
}

type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l badgerLogger) Errorf(msg string, args ...any)   { l.s.Errorf(msg, args...) }
func (l badgerLogger) Warningf(msg string, args ...any) { l.s.Warnf(msg, args...) }
func (l badgerLogger) Infof(msg string, args ...any)    { l.s.Debugf(msg, args...) }
func (l badgerLogger) Debugf(msg string, args ...any)   { l.s.Debugf(msg, args...) }

func openDurableLog(path string, logger *zap.Logger) (*durableLog, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", path, err)
	}
	opts := badger.DefaultOptions(path)
	opts.Logger = badgerLogger{s: logger.Named("badger").Sugar()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return &durableLog{db: db}, nil
}

func docKey(id string) []byte {
	return append(append([]byte{}, docKeyPrefix...), id...)
}

func (d *durableLog) put(docs []document.Document) error {
	wb := d.db.NewWriteBatch()
	defer wb.Cancel()
	for _, doc := range docs {
		data, err := codec.EncodeDocument(doc, true)
		if err != nil {
			return err
		}
		if err := wb.Set(docKey(doc.ID()), data); err != nil {
			return fmt.Errorf("persist %s: %w", doc.ID(), err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush documents: %w", err)
	}
	return nil
}

func (d *durableLog) remove(ids []string) error {
	wb := d.db.NewWriteBatch()
	defer wb.Cancel()
	for _, id := range ids {
		if err := wb.Delete(docKey(id)); err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush deletes: %w", err)
	}
	return nil
}

func (d *durableLog) load() ([]document.Document, error) {
	var docs []document.Document
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = docKeyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				doc, err := codec.DecodeDocument(val)
				if err != nil {
					return err
				}
				docs = append(docs, doc)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	return docs, nil
}

func (d *durableLog) close() error {
	return d.db.Close()
}
