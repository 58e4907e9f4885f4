package model

// ItemStack is an item id plus a count.
type ItemStack struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

// Inventory is an agent-held item multiset. Zero counts are removed.
type Inventory map[string]int

func (inv Inventory) Has(item string, n int) bool {
	return n > 0 && inv[item] >= n
}

func (inv Inventory) Add(item string, n int) {
	if n <= 0 || item == "" {
		return
	}
	inv[item] += n
}

// Take removes n of item. It reports false and changes nothing if the
// inventory holds fewer than n.
func (inv Inventory) Take(item string, n int) bool {
	if !inv.Has(item, n) {
		return false
	}
	inv[item] -= n
	if inv[item] == 0 {
		delete(inv, item)
	}
	return true
}
