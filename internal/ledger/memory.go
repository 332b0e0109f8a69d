package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/susu3304/pokerledger/internal/model"
	"github.com/susu3304/pokerledger/internal/settlement"
)

const recentConfigs = 5

// MemoryStore is a Store kept in process memory. It also serves player
// records and recent configs the way the database does.
type MemoryStore struct {
	mu        sync.Mutex
	sessions  map[string]model.Session
	order     []string
	configs   []model.GameConfig
	players   []model.Player
	transfers map[string][]settlement.Transfer
	failSave  error
	failClose error
}

func NewMemoryStore(players ...model.Player) *MemoryStore {
	return &MemoryStore{
		sessions:  make(map[string]model.Session),
		transfers: make(map[string][]settlement.Transfer),
		players:   players,
	}
}

func (m *MemoryStore) ActiveSession(_ context.Context, tableID string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		s := m.sessions[id]
		if s.TableID == tableID && s.Active {
			c := s.Clone()
			return &c, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) LatestSession(_ context.Context, tableID string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *model.Session
	for _, id := range m.order {
		s := m.sessions[id]
		if s.TableID != tableID || s.Active || s.EndTime == nil {
			continue
		}
		if latest == nil || !s.EndTime.Before(*latest.EndTime) {
			c := s.Clone()
			latest = &c
		}
	}
	return latest, nil
}

func (m *MemoryStore) Session(_ context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	c := s.Clone()
	return &c, nil
}

func (m *MemoryStore) Sessions(_ context.Context) ([]model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Session
	for _, id := range m.order {
		out = append(out, m.sessions[id].Clone())
	}
	return out, nil
}

func (m *MemoryStore) SaveSession(_ context.Context, s model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave != nil {
		return m.failSave
	}
	if _, ok := m.sessions[s.ID]; !ok {
		m.order = append(m.order, s.ID)
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) SaveConfig(_ context.Context, cfg model.GameConfig) (model.GameConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.configs {
		if c.SameStakes(cfg) {
			return c, nil
		}
	}
	m.configs = append([]model.GameConfig{cfg}, m.configs...)
	if len(m.configs) > recentConfigs {
		m.configs = m.configs[:recentConfigs]
	}
	return cfg, nil
}

func (m *MemoryStore) Players(_ context.Context) ([]model.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Player(nil), m.players...), nil
}

func (m *MemoryStore) Player(_ context.Context, id string) (*model.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.players {
		if p.ID == id {
			out := p
			return &out, nil
		}
	}
	return nil, model.ErrPlayerNotFound
}

func (m *MemoryStore) CreatePlayer(_ context.Context, p model.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.players {
		if existing.ID == p.ID {
			return fmt.Errorf("player %s already exists", p.ID)
		}
	}
	m.players = append(m.players, p)
	return nil
}

// RecentConfigs returns stored configs, newest first.
func (m *MemoryStore) RecentConfigs(_ context.Context) ([]model.GameConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.GameConfig(nil), m.configs...), nil
}

func (m *MemoryStore) CloseSession(_ context.Context, s model.Session, ts []settlement.Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failClose != nil {
		return m.failClose
	}
	if m.failSave != nil {
		return m.failSave
	}
	if _, ok := m.sessions[s.ID]; !ok {
		m.order = append(m.order, s.ID)
	}
	m.sessions[s.ID] = s.Clone()
	var plan []settlement.Transfer
	for _, t := range ts {
		if t.Amount > 0 && t.FromID != "" && t.ToID != "" {
			plan = append(plan, t)
		}
	}
	m.transfers[s.ID] = plan
	return nil
}

func (m *MemoryStore) Transfers(_ context.Context, sessionID string) ([]settlement.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]settlement.Transfer(nil), m.transfers[sessionID]...), nil
}

func (m *MemoryStore) CompleteTransfer(_ context.Context, sessionID, a, b string) (*settlement.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts := m.transfers[sessionID]
	for i := range ts {
		t := &ts[i]
		if t.Completed {
			continue
		}
		if (t.FromID == a && t.ToID == b) || (t.FromID == b && t.ToID == a) {
			t.Completed = true
			out := *t
			return &out, nil
		}
	}
	return nil, nil
}

var _ Store = (*MemoryStore)(nil)
