package domain

import "time"

// HistoryEntry 是状态账本中的一条不可变记录，每次被接受的主状态迁移追加一条。
type HistoryEntry struct {
	ID        int64
	OrderID   string
	Status    Status
	Note      string
	CreatedAt time.Time
}
