package model

// LineItem はカート内の1行（商品と数量の組）を表す。
// 1つのカートに同じProductIDの行は高々1つしか存在しない。
type LineItem struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Alias     string `json:"alias"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int64  `json:"quantity"`
}

// Subtotal は行の小計（単価×数量）を返す。
func (l LineItem) Subtotal() int64 {
	return l.UnitPrice * l.Quantity
}

// CartSnapshot はある時点のカート内容と合計金額を表す。
type CartSnapshot struct {
	CartID string     `json:"cart_id"`
	Items  []LineItem `json:"items"`
	Total  int64      `json:"total"`
}

// NewCartSnapshot は行一覧から合計金額を計算してスナップショットを生成する。
func NewCartSnapshot(cartID string, items []LineItem) *CartSnapshot {
	var total int64
	for _, item := range items {
		total += item.Subtotal()
	}
	if items == nil {
		items = []LineItem{}
	}
	return &CartSnapshot{
		CartID: cartID,
		Items:  items,
		Total:  total,
	}
}

// IsEmpty はカートが空かどうかを返す。
func (s *CartSnapshot) IsEmpty() bool {
	return s == nil || len(s.Items) == 0
}

// ItemCount はカート内の商品点数（数量の合計）を返す。
func (s *CartSnapshot) ItemCount() int64 {
	if s == nil {
		return 0
	}
	var n int64
	for _, item := range s.Items {
		n += item.Quantity
	}
	return n
}
