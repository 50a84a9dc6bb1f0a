package payment

// ProductMapping は価格を作成する際の紐付け先リモート商品を決める。
// 優先順位は、ローカル商品IDごとの個別指定、全商品共通の指定、商品自身のリモートIDの順。
type ProductMapping struct {
	byLocalID map[int64]string
	catchAll  string
}

// NewProductMapping はProductMappingを生成する。
func NewProductMapping(byLocalID map[int64]string, catchAll string) *ProductMapping {
	m := make(map[int64]string, len(byLocalID))
	for k, v := range byLocalID {
		m[k] = v
	}
	return &ProductMapping{byLocalID: m, catchAll: catchAll}
}

// Resolve は商品に対応するリモート商品IDを返す。
func (m *ProductMapping) Resolve(localID int64, ownRemoteID string) string {
	if m != nil {
		if id, ok := m.byLocalID[localID]; ok && id != "" {
			return id
		}
		if m.catchAll != "" {
			return m.catchAll
		}
	}
	return ownRemoteID
}
