// Package store keeps a local snapshot of owners' UTXOs in a bbolt file.
//
// Layout: one top-level bucket holding a nested bucket per owner address.
// Inside an owner bucket, keys are the 32-byte big-endian utxo position
// and values are the RLP encoding of the output fields. Keys sort by
// position, so List returns UTXOs in ledger order.
package store

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/suffix-labs/omg-txkit/pkg/transaction"

	bolt "go.etcd.io/bbolt"
)

var bucketUtxos = []byte("utxos_by_owner")

// posKeyLength is the width of a position key.
const posKeyLength = 32

// DB is a UTXO snapshot store.
type DB struct {
	db *bolt.DB
}

type storedOutput struct {
	OutputType uint64
	Currency   common.Address
	Amount     *big.Int
}

// Open opens or creates the store at path.
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("store path required")
	}

	bdb, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt: %w", err)
	}

	if err := bdb.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketUtxos); err != nil {
			return fmt.Errorf("create bucket %s: %w", string(bucketUtxos), err)
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}
	return &DB{db: bdb}, nil
}

// Close closes the underlying file.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Put stores utxos, overwriting entries at the same position.
func (d *DB) Put(utxos ...transaction.UTXO) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		for _, u := range utxos {
			if err := putUtxo(tx, u); err != nil {
				return err
			}
		}
		return nil
	})
}

// Replace swaps the whole snapshot of owner for utxos in one transaction.
func (d *DB) Replace(owner common.Address, utxos []transaction.UTXO) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketUtxos)
		if root.Bucket(owner.Bytes()) != nil {
			if err := root.DeleteBucket(owner.Bytes()); err != nil {
				return fmt.Errorf("clear %s: %w", owner.Hex(), err)
			}
		}
		for _, u := range utxos {
			if u.Owner != owner {
				return fmt.Errorf("utxo %s is owned by %s, not %s", u.Input(), u.Owner.Hex(), owner.Hex())
			}
			if err := putUtxo(tx, u); err != nil {
				return err
			}
		}
		return nil
	})
}

// List returns the UTXOs of owner in ascending position order.
func (d *DB) List(owner common.Address) ([]transaction.UTXO, error) {
	var utxos []transaction.UTXO
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketUtxos).Bucket(owner.Bytes())
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			u, err := decodeEntry(owner, k, v)
			if err != nil {
				return err
			}
			utxos = append(utxos, u)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return utxos, nil
}

// Owners returns every owner with a stored snapshot.
func (d *DB) Owners() ([]common.Address, error) {
	var owners []common.Address
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUtxos).ForEach(func(k, v []byte) error {
			if v == nil {
				owners = append(owners, common.BytesToAddress(k))
			}
			return nil
		})
	})
	return owners, err
}

// Remove deletes the given positions of owner, typically the inputs of a
// submitted transaction. Missing positions are ignored.
func (d *DB) Remove(owner common.Address, inputs []transaction.Input) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketUtxos).Bucket(owner.Bytes())
		if b == nil {
			return nil
		}
		for _, in := range inputs {
			if err := b.Delete(posKey(transaction.EncodeUtxoPos(in))); err != nil {
				return fmt.Errorf("delete %s: %w", in, err)
			}
		}
		return nil
	})
}

func putUtxo(tx *bolt.Tx, u transaction.UTXO) error {
	if u.Amount == nil || u.Amount.Sign() <= 0 {
		return fmt.Errorf("utxo %s has non-positive amount", u.Input())
	}
	if err := transaction.CheckPosition(u.Input()); err != nil {
		return err
	}
	b, err := tx.Bucket(bucketUtxos).CreateBucketIfNotExists(u.Owner.Bytes())
	if err != nil {
		return fmt.Errorf("create owner bucket %s: %w", u.Owner.Hex(), err)
	}

	out := u.Output()
	value, err := rlp.EncodeToBytes(storedOutput{
		OutputType: out.OutputType,
		Currency:   out.Currency,
		Amount:     out.Amount,
	})
	if err != nil {
		return fmt.Errorf("encode utxo %s: %w", u.Input(), err)
	}
	return b.Put(posKey(u.Pos()), value)
}

func decodeEntry(owner common.Address, key, value []byte) (transaction.UTXO, error) {
	in, err := transaction.DecodeUtxoPos(new(big.Int).SetBytes(key))
	if err != nil {
		return transaction.UTXO{}, fmt.Errorf("corrupt key %x: %w", key, err)
	}

	var out storedOutput
	if err := rlp.DecodeBytes(value, &out); err != nil {
		return transaction.UTXO{}, fmt.Errorf("corrupt utxo %s: %w", in, err)
	}

	return transaction.UTXO{
		Blknum:     in.Blknum,
		Txindex:    in.Txindex,
		Oindex:     in.Oindex,
		OutputType: out.OutputType,
		Owner:      owner,
		Currency:   out.Currency,
		Amount:     out.Amount,
	}, nil
}

func posKey(pos *big.Int) []byte {
	return pos.FillBytes(make([]byte, posKeyLength))
}
