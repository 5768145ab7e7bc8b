// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package reverts

import (
	"errors"
	"fmt"
)

// Kind classifies why a message was reverted.
type Kind uint8

const (
	AccessDenied Kind = iota + 1
	InsufficientFunds
	InvalidPhase
	CapacityExceeded
	InvalidRequest
	Halted
	UnknownOperation
)

var kindNames = map[Kind]string{
	AccessDenied:      "access denied",
	InsufficientFunds: "insufficient funds",
	InvalidPhase:      "invalid phase",
	CapacityExceeded:  "capacity exceeded",
	InvalidRequest:    "invalid request",
	Halted:            "halted",
	UnknownOperation:  "unknown operation",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Error makes a Kind usable as a sentinel with errors.Is.
func (k Kind) Error() string {
	return k.String()
}

type ErrRevert struct {
	kind    Kind
	message string
}

func New(kind Kind, message string) *ErrRevert {
	return &ErrRevert{
		kind:    kind,
		message: message,
	}
}

func Newf(kind Kind, format string, args ...any) *ErrRevert {
	return New(kind, fmt.Sprintf(format, args...))
}

func (e *ErrRevert) Error() string {
	return e.kind.String() + ": " + e.message
}

func (e *ErrRevert) Kind() Kind {
	return e.kind
}

func (e *ErrRevert) Message() string {
	return e.message
}

// Is matches a revert against its Kind.
func (e *ErrRevert) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.kind
}

func IsRevertErr(err any) bool {
	if err == nil {
		return false
	}
	e, ok := err.(error)
	if !ok {
		return false
	}
	var ve *ErrRevert
	return errors.As(e, &ve)
}

// KindOf returns the kind of a revert, or zero when err is not a revert.
func KindOf(err error) Kind {
	var ve *ErrRevert
	if errors.As(err, &ve) {
		return ve.kind
	}
	return 0
}
