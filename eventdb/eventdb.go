// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package eventdb keeps the history of inbound messages and of the outbound
// messages they caused, in sqlite.
package eventdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"math/big"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/vechain/stakepool/pool"
	"github.com/vechain/stakepool/treasury"
	"github.com/vechain/stakepool/treasury/msg"
	"github.com/vechain/stakepool/treasury/reverts"
)

type EventDB struct {
	path          string
	db            *sql.DB
	driverVersion string
}

// New create or open event db at given path.
func New(path string) (eventDB *EventDB, err error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if eventDB == nil {
			db.Close()
		}
	}()
	// a memory db lives as long as its only connection
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(messageTableSchema + effectTableSchema); err != nil {
		return nil, errors.Wrap(err, "create tables")
	}

	driverVer, _, _ := sqlite3.Version()
	return &EventDB{
		path,
		db,
		driverVer,
	}, nil
}

// NewMem create an event db in ram.
func NewMem() (*EventDB, error) {
	return New(":memory:")
}

// Close close the event db.
func (db *EventDB) Close() {
	db.db.Close()
}

func (db *EventDB) Path() string {
	return db.path
}

func (db *EventDB) DriverVersion() string {
	return db.driverVersion
}

func valueBytes(v *big.Int) []byte {
	if v == nil {
		return nil
	}
	return v.Bytes()
}

// Record stores an applied message and its outbound messages under seq.
func (db *EventDB) Record(ctx context.Context, seq uint64, at uint64, env *msg.Envelope, res *treasury.Result) error {
	envelope, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "encode envelope")
	}
	records, err := msg.NewRecords(res.Outbound)
	if err != nil {
		return err
	}
	hash, err := res.State.Hash()
	if err != nil {
		return errors.Wrap(err, "hash state")
	}

	var op msg.Op
	if env.Body != nil {
		op = env.Body.Op()
	}
	outcome, errText := OutcomeOK, ""
	if res.Err != nil {
		outcome = "error"
		if k := reverts.KindOf(res.Err); k != 0 {
			outcome = k.String()
		}
		errText = res.Err.Error()
	}

	return db.execInTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO message(seq, time, op, sender, value, envelope, outcome, error, stateHash) VALUES(?,?,?,?,?,?,?,?,?)",
			seq, at, string(op), env.Sender.Bytes(), valueBytes(env.Value), envelope, outcome, errText, hash.Bytes(),
		); err != nil {
			return errors.Wrap(err, "insert message")
		}
		for i, r := range records {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO effect(seq, effectIndex, kind, dest, value, body) VALUES(?,?,?,?,?,?)",
				seq, i, string(r.Kind), r.Dest.Bytes(), valueBytes(r.Value), []byte(r.Body),
			); err != nil {
				return errors.Wrap(err, "insert effect")
			}
		}
		return nil
	})
}

func (db *EventDB) execInTx(ctx context.Context, proc func(*sql.Tx) error) (err error) {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := proc(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// LastSeq returns the highest recorded sequence number, zero on an empty db.
func (db *EventDB) LastSeq(ctx context.Context) (uint64, error) {
	var seq sql.NullInt64
	if err := db.db.QueryRowContext(ctx, "SELECT MAX(seq) FROM message").Scan(&seq); err != nil {
		return 0, err
	}
	return uint64(seq.Int64), nil
}

// Messages returns the recorded messages matching filter.
func (db *EventDB) Messages(ctx context.Context, filter *MessageFilter) ([]*Message, error) {
	const query = "SELECT seq, time, op, sender, value, envelope, outcome, error, stateHash FROM message"
	if filter == nil {
		return db.queryMessages(ctx, query+" ORDER BY seq ASC")
	}
	var args []any
	stmt := query + " WHERE 1"
	if filter.Range != nil {
		args = append(args, filter.Range.From)
		stmt += " AND seq >= ? "
		if filter.Range.To >= filter.Range.From {
			args = append(args, filter.Range.To)
			stmt += " AND seq <= ? "
		}
	}
	if filter.Sender != nil {
		args = append(args, filter.Sender.Bytes())
		stmt += " AND sender = ? "
	}
	if filter.Op != nil {
		args = append(args, string(*filter.Op))
		stmt += " AND op = ? "
	}
	if filter.Reverted != nil {
		args = append(args, OutcomeOK)
		if *filter.Reverted {
			stmt += " AND outcome != ? "
		} else {
			stmt += " AND outcome = ? "
		}
	}

	if filter.Order == DESC {
		stmt += " ORDER BY seq DESC "
	} else {
		stmt += " ORDER BY seq ASC "
	}

	if filter.Options != nil {
		stmt += " limit ?, ? "
		args = append(args, filter.Options.Offset, filter.Options.Limit)
	}
	return db.queryMessages(ctx, stmt, args...)
}

func (db *EventDB) queryMessages(ctx context.Context, stmt string, args ...any) ([]*Message, error) {
	rows, err := db.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		var (
			seq       uint64
			at        uint64
			op        string
			sender    []byte
			value     []byte
			envelope  []byte
			outcome   string
			errText   string
			stateHash []byte
		)
		if err := rows.Scan(
			&seq,
			&at,
			&op,
			&sender,
			&value,
			&envelope,
			&outcome,
			&errText,
			&stateHash,
		); err != nil {
			return nil, err
		}
		messages = append(messages, &Message{
			Seq:       seq,
			Time:      at,
			Op:        msg.Op(op),
			Sender:    pool.BytesToAddress(sender),
			Value:     new(big.Int).SetBytes(value),
			Envelope:  envelope,
			Outcome:   outcome,
			Error:     errText,
			StateHash: pool.BytesToBytes32(stateHash),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

// Effects returns the outbound messages recorded for seq, in emission order.
func (db *EventDB) Effects(ctx context.Context, seq uint64) ([]*Effect, error) {
	rows, err := db.db.QueryContext(ctx,
		"SELECT seq, effectIndex, kind, dest, value, body FROM effect WHERE seq = ? ORDER BY effectIndex ASC", seq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var effects []*Effect
	for rows.Next() {
		var (
			e     Effect
			kind  string
			dest  []byte
			value []byte
			body  []byte
		)
		if err := rows.Scan(&e.Seq, &e.Index, &kind, &dest, &value, &body); err != nil {
			return nil, err
		}
		e.Kind = msg.Kind(kind)
		e.Dest = pool.BytesToAddress(dest)
		e.Value = new(big.Int).SetBytes(value)
		e.Body = body
		effects = append(effects, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return effects, nil
}
