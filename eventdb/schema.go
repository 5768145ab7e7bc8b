// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package eventdb

// one row per applied inbound message
const messageTableSchema = `
create table if not exists message (
	seq integer primary key,
	time integer,
	op text,
	sender blob(20),
	value blob,
	envelope blob,
	outcome text,
	error text,
	stateHash blob(32)
);

CREATE INDEX if not exists senderIndex on message(sender);
CREATE INDEX if not exists opIndex on message(op);
`

// one row per outbound message emitted while applying an inbound one
const effectTableSchema = `
create table if not exists effect (
	seq integer,
	effectIndex integer,
	kind text,
	dest blob(20),
	value blob,
	body blob,
	primary key (seq, effectIndex)
);

CREATE INDEX if not exists destIndex on effect(dest);
`
