// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package config reads the daemon configuration file.
package config

import (
	"bytes"
	"math/big"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vechain/stakepool/election"
	"github.com/vechain/stakepool/pool"
	"github.com/vechain/stakepool/treasury"
)

// Amount is a coin amount written as a decimal number of coins, e.g. "0.1".
type Amount big.Int

func NewAmount(v *big.Int) *Amount {
	return (*Amount)(new(big.Int).Set(v))
}

func (a *Amount) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return errors.Errorf("line %d: coin amount must be a scalar", node.Line)
	}
	v, err := pool.ParseCoins(node.Value)
	if err != nil {
		return errors.WithMessagef(err, "line %d", node.Line)
	}
	(*big.Int)(a).Set(v)
	return nil
}

func (a *Amount) MarshalYAML() (any, error) {
	return pool.FormatCoins((*big.Int)(a)), nil
}

// Int returns a copy of the amount in nano units.
func (a *Amount) Int() *big.Int {
	return new(big.Int).Set((*big.Int)(a))
}

type API struct {
	Addr                 string        `yaml:"addr"`
	Cors                 string        `yaml:"cors"`
	MessagesLimit        uint64        `yaml:"messages-limit"`
	SlowQueriesThreshold time.Duration `yaml:"slow-queries-threshold"`
	Log5xxErrors         bool          `yaml:"log-5xx-errors"`
	EnableLogs           bool          `yaml:"enable-logs"`
	EnableMetrics        bool          `yaml:"enable-metrics"`
	Pprof                bool          `yaml:"pprof"`
}

type Params struct {
	RequestLoanFee     *Amount `yaml:"request-loan-fee"`
	DepositFee         *Amount `yaml:"deposit-fee"`
	MinDeposit         *Amount `yaml:"min-deposit"`
	MaxBatchMessages   uint32  `yaml:"max-batch-messages"`
	MaxRecoverAttempts uint32  `yaml:"max-recover-attempts"`
	MaxLoansPerRound   uint32  `yaml:"max-loans-per-round"`
}

type Election struct {
	election.Config `yaml:",inline"`

	MinStake      *Amount       `yaml:"min-stake"`
	MaxStake      *Amount       `yaml:"max-stake"`
	MaxPunishment *Amount       `yaml:"max-punishment"`
	Prev          election.Vset `yaml:"prev"`
	Curr          election.Vset `yaml:"curr"`
}

// File is the daemon configuration.
type File struct {
	DataDir   string         `yaml:"data-dir"`
	CacheMB   int            `yaml:"cache-mb"`
	AdminAddr string         `yaml:"admin-addr"`
	NTPServer string         `yaml:"ntp-server"`
	API       API            `yaml:"api"`
	Roles     treasury.Roles `yaml:"roles"`
	Params    Params         `yaml:"params"`
	Election  Election       `yaml:"election"`
}

// Default returns the configuration used for everything a file leaves out.
func Default() *File {
	params := treasury.DefaultParams()
	return &File{
		DataDir:   "./data",
		CacheMB:   256,
		NTPServer: "pool.ntp.org",
		API: API{
			Addr:          "localhost:8670",
			MessagesLimit: 1000,
		},
		Params: Params{
			RequestLoanFee:     NewAmount(params.RequestLoanFee),
			DepositFee:         NewAmount(params.DepositFee),
			MinDeposit:         NewAmount(params.MinDeposit),
			MaxBatchMessages:   params.MaxBatchMessages,
			MaxRecoverAttempts: params.MaxRecoverAttempts,
		},
		Election: Election{
			Config: election.Config{
				ElectFor:             65536,
				ElectionsStartBefore: 32768,
				ElectionsEndBefore:   8192,
				StakeHeldFor:         32768,
				MaxValidators:        400,
			},
			MinStake:      NewAmount(pool.Coins(10_000)),
			MaxStake:      NewAmount(pool.Coins(10_000_000)),
			MaxPunishment: NewAmount(pool.Coins(100)),
		},
	}
}

// Parse decodes data over the defaults. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	f := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return f, nil
}

// Load reads the file at path. An empty path yields the defaults.
func Load(path string) (*File, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	return Parse(data)
}

// TreasuryParams converts and validates the treasury parameters.
func (f *File) TreasuryParams() (treasury.Params, error) {
	p := treasury.Params{
		MaxBatchMessages:   f.Params.MaxBatchMessages,
		MaxRecoverAttempts: f.Params.MaxRecoverAttempts,
		MaxLoansPerRound:   f.Params.MaxLoansPerRound,
	}
	if f.Params.RequestLoanFee != nil {
		p.RequestLoanFee = f.Params.RequestLoanFee.Int()
	}
	if f.Params.DepositFee != nil {
		p.DepositFee = f.Params.DepositFee.Int()
	}
	if f.Params.MinDeposit != nil {
		p.MinDeposit = f.Params.MinDeposit.Int()
	}
	if err := p.Validate(); err != nil {
		return treasury.Params{}, errors.WithMessage(err, "params")
	}
	return p, nil
}

// Snapshot builds the initial election view observed at now.
func (f *File) Snapshot(now uint32) (*election.Snapshot, error) {
	cfg := f.Election.Config
	if f.Election.MinStake != nil {
		cfg.MinStake = f.Election.MinStake.Int()
	}
	if f.Election.MaxStake != nil {
		cfg.MaxStake = f.Election.MaxStake.Int()
	}
	if f.Election.MaxPunishment != nil {
		cfg.MaxPunishment = f.Election.MaxPunishment.Int()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithMessage(err, "election")
	}
	return &election.Snapshot{
		Now:    now,
		Config: cfg,
		Prev:   f.Election.Prev,
		Curr:   f.Election.Curr,
	}, nil
}

// ValidateRoles checks that every role holder is set.
func (f *File) ValidateRoles() error {
	roles := []struct {
		name string
		addr pool.Address
	}{
		{"self", f.Roles.Self},
		{"governor", f.Roles.Governor},
		{"halter", f.Roles.Halter},
		{"token-ledger", f.Roles.TokenLedger},
		{"receipt-registry", f.Roles.ReceiptRegistry},
	}
	for _, r := range roles {
		if r.addr.IsZero() {
			return errors.Errorf("roles: %s is not set", r.name)
		}
	}
	return nil
}
