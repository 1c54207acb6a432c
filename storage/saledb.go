package storage

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"crowdsale/core/types"
	"crowdsale/native/sale"
)

const (
	keyCounters  = "sale/counters"
	keyTierCount = "sale/tiers/count"

	prefixTier        = "sale/tiers/"
	prefixParticipant = "sale/participants/"
	prefixAccount     = "sale/accounts/"
)

// SaleStore persists the sale engine's state as JSON records in a key-value
// database. It satisfies the engine's state interface.
type SaleStore struct {
	db Database
}

// NewSaleStore wraps the supplied database.
func NewSaleStore(db Database) *SaleStore {
	return &SaleStore{db: db}
}

func (s *SaleStore) getJSON(key string, out interface{}) (bool, error) {
	raw, err := s.db.Get([]byte(key))
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *SaleStore) putJSON(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.db.Put([]byte(key), raw); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// CountersGet loads the sale-wide counters.
func (s *SaleStore) CountersGet() (*sale.Counters, bool, error) {
	counters := new(sale.Counters)
	ok, err := s.getJSON(keyCounters, counters)
	if err != nil || !ok {
		return nil, false, err
	}
	return counters, true, nil
}

// CountersPut stores the sale-wide counters.
func (s *SaleStore) CountersPut(counters *sale.Counters) error {
	if counters == nil {
		return fmt.Errorf("nil counters")
	}
	return s.putJSON(keyCounters, counters)
}

func tierKey(index uint32) string {
	return fmt.Sprintf("%s%d", prefixTier, index)
}

// TierGet loads the tier at the supplied index.
func (s *SaleStore) TierGet(index uint32) (*sale.Tier, bool, error) {
	tier := new(sale.Tier)
	ok, err := s.getJSON(tierKey(index), tier)
	if err != nil || !ok {
		return nil, false, err
	}
	return tier, true, nil
}

// TierPut stores a tier and bumps the tier count when the index is new.
func (s *SaleStore) TierPut(tier *sale.Tier) error {
	if tier == nil {
		return fmt.Errorf("nil tier")
	}
	count, err := s.TierCount()
	if err != nil {
		return err
	}
	if err := s.putJSON(tierKey(tier.Index), tier); err != nil {
		return err
	}
	if tier.Index >= count {
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, tier.Index+1)
		if err := s.db.Put([]byte(keyTierCount), buf); err != nil {
			return fmt.Errorf("put tier count: %w", err)
		}
	}
	return nil
}

// TierCount returns the number of stored tiers.
func (s *SaleStore) TierCount() (uint32, error) {
	raw, err := s.db.Get([]byte(keyTierCount))
	if errors.Is(err, ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get tier count: %w", err)
	}
	if len(raw) != 4 {
		return 0, fmt.Errorf("corrupt tier count: %d bytes", len(raw))
	}
	return binary.BigEndian.Uint32(raw), nil
}

func participantKey(addr [20]byte) string {
	return prefixParticipant + hex.EncodeToString(addr[:])
}

// ParticipantGet loads a per-address sale record.
func (s *SaleStore) ParticipantGet(addr [20]byte) (*sale.Participant, bool, error) {
	participant := new(sale.Participant)
	ok, err := s.getJSON(participantKey(addr), participant)
	if err != nil || !ok {
		return nil, false, err
	}
	return participant, true, nil
}

// ParticipantPut stores a per-address sale record.
func (s *SaleStore) ParticipantPut(participant *sale.Participant) error {
	if participant == nil {
		return fmt.Errorf("nil participant")
	}
	return s.putJSON(participantKey(participant.Address), participant)
}

func accountKey(addr []byte) string {
	return prefixAccount + hex.EncodeToString(addr)
}

// GetAccount loads the balance record for an address. A missing account is
// reported as nil without error; the engine normalizes it.
func (s *SaleStore) GetAccount(addr []byte) (*types.Account, error) {
	account := new(types.Account)
	ok, err := s.getJSON(accountKey(addr), account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return account, nil
}

// PutAccount stores the balance record for an address.
func (s *SaleStore) PutAccount(addr []byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("nil account")
	}
	return s.putJSON(accountKey(addr), account)
}
