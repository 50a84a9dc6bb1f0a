package cart

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/storefront/internal/model"
)

type memoryCart struct {
	items     []model.LineItem
	index     map[int64]int
	updatedAt time.Time
}

// MemoryStore はプロセス内のマップにカートを保持するStore実装。
// 全操作を1つのミューテックスで直列化する。
// 最終更新からttlを過ぎたカートは次のアクセス時に破棄する（ttlが0以下なら無期限）。
type MemoryStore struct {
	mu    sync.Mutex
	carts map[string]*memoryCart
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryStore はMemoryStoreを生成する。
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		carts: make(map[string]*memoryCart),
		ttl:   ttl,
		now:   time.Now,
	}
}

// lookup はロック取得済みの状態で有効なカートを返す。
func (s *MemoryStore) lookup(cartID string) *memoryCart {
	c, ok := s.carts[cartID]
	if !ok {
		return nil
	}
	if s.ttl > 0 && s.now().Sub(c.updatedAt) > s.ttl {
		delete(s.carts, cartID)
		return nil
	}
	return c
}

// AddItem は行を追加または数量を加算する。上限の確認もロック内で行う。
func (s *MemoryStore) AddItem(_ context.Context, cartID string, line model.LineItem, limit int64) error {
	if err := validateLine(cartID, line); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.lookup(cartID)

	if limit > 0 {
		current := int64(0)
		if c != nil {
			if i, ok := c.index[line.ProductID]; ok {
				current = c.items[i].Quantity
			}
		}
		if current+line.Quantity > limit {
			return ErrLimitExceeded
		}
	}

	if c == nil {
		c = &memoryCart{index: make(map[int64]int)}
		s.carts[cartID] = c
	}

	if i, ok := c.index[line.ProductID]; ok {
		c.items[i].Quantity += line.Quantity
	} else {
		c.index[line.ProductID] = len(c.items)
		c.items = append(c.items, line)
	}
	c.updatedAt = s.now()

	return nil
}

// Clear はカートを破棄する。
func (s *MemoryStore) Clear(_ context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, cartID)
	return nil
}

// Snapshot はカート内容のコピーを返す。
func (s *MemoryStore) Snapshot(_ context.Context, cartID string) (*model.CartSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.lookup(cartID)
	if c == nil {
		return model.NewCartSnapshot(cartID, nil), nil
	}

	items := make([]model.LineItem, len(c.items))
	copy(items, c.items)
	return model.NewCartSnapshot(cartID, items), nil
}

// Len は保持しているカート数を返す。
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.carts)
}

var _ Store = (*MemoryStore)(nil)
