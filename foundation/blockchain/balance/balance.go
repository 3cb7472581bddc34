// Package balance maintains address balances in memory.
package balance

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

// ErrInsufficientBalance is returned when a debit is larger than the
// balance of the address.
var ErrInsufficientBalance = errors.New("insufficient balance")

// ErrOverflow is returned when a credit would exceed the largest balance.
var ErrOverflow = errors.New("balance overflow")

// Sheet represents the data representation to maintain address balances.
type Sheet struct {
	mu    sync.RWMutex
	sheet map[string]uint64
}

// NewSheet constructs a new balance sheet for use, expects a starting
// balance sheet usually from a genesis file.
func NewSheet(sheet map[string]uint64) *Sheet {
	bs := Sheet{
		sheet: make(map[string]uint64),
	}

	if sheet != nil {
		bs.Reset(sheet)
	}

	return &bs
}

// Reset takes the specified sheet and resets the balances.
func (bs *Sheet) Reset(sheet map[string]uint64) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	bs.sheet = make(map[string]uint64)
	for address, value := range sheet {
		bs.sheet[address] = value
	}
}

// Balance returns the balance of the address, zero when unknown.
func (bs *Sheet) Balance(address string) uint64 {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	return bs.sheet[address]
}

// Copy makes a copy of the current balance sheet but returns the raw data.
// Addresses with a zero balance are left out.
func (bs *Sheet) Copy() map[string]uint64 {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	sheet := make(map[string]uint64)
	for address, value := range bs.sheet {
		if value > 0 {
			sheet[address] = value
		}
	}
	return sheet
}

// CanCredit reports whether the address can receive the value without
// overflowing its balance.
func (bs *Sheet) CanCredit(address string, value uint64) bool {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	return value <= math.MaxUint64-bs.sheet[address]
}

// Credit gives the specified address the specified value. Nothing changes
// when the balance would overflow.
func (bs *Sheet) Credit(address string, value uint64) error {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if value > math.MaxUint64-bs.sheet[address] {
		return fmt.Errorf("%s has %d, credit %d: %w", address, bs.sheet[address], value, ErrOverflow)
	}

	bs.sheet[address] += value

	return nil
}

// Debit takes the specified value from the address.
func (bs *Sheet) Debit(address string, value uint64) error {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if value > bs.sheet[address] {
		return fmt.Errorf("%s has %d, needs %d: %w", address, bs.sheet[address], value, ErrInsufficientBalance)
	}

	bs.sheet[address] -= value

	return nil
}

// Transfer moves the value between the addresses. Nothing changes when the
// from address has an insufficient balance or the to balance would overflow.
func (bs *Sheet) Transfer(from string, to string, value uint64) error {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if value > bs.sheet[from] {
		return fmt.Errorf("%s has %d, needs %d: %w", from, bs.sheet[from], value, ErrInsufficientBalance)
	}

	if from != to && value > math.MaxUint64-bs.sheet[to] {
		return fmt.Errorf("%s has %d, credit %d: %w", to, bs.sheet[to], value, ErrOverflow)
	}

	bs.sheet[from] -= value
	bs.sheet[to] += value

	return nil
}
