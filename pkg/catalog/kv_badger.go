package catalog

import (
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dgraph-io/badger/v3"
	"github.com/dragonhoard/dragon/pkg/errors"
)

type (
	// kvBadger provides a KV store implementation based on dgraph-io/badger/v3
	kvBadger struct {
		*badger.DB
	}

	kvBadgerIterator struct {
		isFirst  bool
		prefix   []byte
		txn      *badger.Txn
		iterator *badger.Iterator
	}
)

func (kv *kvBadger) Size() uint64 {
	lsmSize, logSize := kv.DB.Size()

	return uint64(lsmSize + logSize)
}

func (kv *kvBadger) ScanPrefix(prefix []byte) kvIterator {
	txn := kv.DB.NewTransaction(false)
	iterator := txn.NewIterator(badger.IteratorOptions{
		PrefetchSize:   256,
		PrefetchValues: true,
		Prefix:         prefix,
	})

	return &kvBadgerIterator{
		isFirst:  true,
		prefix:   prefix,
		txn:      txn,
		iterator: iterator,
	}
}

func (kv *kvBadger) Get(key []byte) ([]byte, error) {
	var value []byte
	err := kv.DB.View(func(txn *badger.Txn) error {
		item, e := txn.Get(key)
		if e != nil {
			return e
		}
		value, e = item.ValueCopy(nil)

		return e
	})

	return value, err
}

func (kv *kvBadger) Exists(key []byte) (bool, error) {
	err := kv.DB.View(func(txn *badger.Txn) error {
		_, e := txn.Get(key)

		return e
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}

		// some technical error occurred: interrupt
		return false, err
	}

	return true, nil
}

func (kv *kvBadger) Set(key, value []byte) error {
	return backoff.Retry(func() error {
		err := kv.DB.Update(func(txn *badger.Txn) error {
			e := txn.Set(key, value)
			if e != nil {
				if errors.Is(e, badger.ErrConflict) {
					return e // retry
				}

				return backoff.Permanent(e)
			}

			return nil
		})

		return err
	},
		backoff.NewConstantBackOff(10*time.Millisecond),
	)
}

func (kv *kvBadger) Delete(key []byte) error {
	return backoff.Retry(func() error {
		err := kv.DB.Update(func(txn *badger.Txn) error {
			e := txn.Delete(key)
			if e != nil {
				if errors.Is(e, badger.ErrConflict) {
					return e // retry
				}

				return backoff.Permanent(e)
			}

			return nil
		})

		return err
	},
		backoff.NewConstantBackOff(10*time.Millisecond),
	)
}

func (i *kvBadgerIterator) Next() bool {
	if i.isFirst {
		i.iterator.Rewind()
		i.isFirst = false

		return i.iterator.Valid()
	}

	i.iterator.Next()

	return i.iterator.Valid()
}

func (i *kvBadgerIterator) Item() ([]byte, []byte, error) {
	key := i.iterator.Item().KeyCopy(nil)
	val, err := i.iterator.Item().ValueCopy(nil)

	return key, val, err
}

func (i *kvBadgerIterator) Close() error {
	i.iterator.Close()
	i.txn.Discard()

	return nil
}

func makeKVBadger(pth string) (*kvBadger, error) {
	if err := os.MkdirAll(pth, 0700); err != nil {
		return nil, fmt.Errorf("makeKV: mkdir: %w", err)
	}

	// the catalog is long-lived, unlike a scratch index: keep badger defaults,
	// trim logging and disable value log GC surprises with LSM-only options
	db, err := badger.Open(
		badger.LSMOnlyOptions(pth).
			WithLoggingLevel(badger.WARNING),
	)
	if err != nil {
		return nil, fmt.Errorf("open KV: %w", err)
	}

	return &kvBadger{DB: db}, nil
}
