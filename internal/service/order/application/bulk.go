package application

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

const bulkConcurrency = 4

// BulkResult 是批量操作的汇总。Failed 的值是面向用户的失败原因。
type BulkResult struct {
	Succeeded []string          `json:"succeeded"`
	Failed    map[string]string `json:"failed"`
}

// runBulk 并发执行 fn，错误按 id 收集而不是中断整个批次。
func runBulk(ctx context.Context, ids []string, fn func(ctx context.Context, id string) error) *BulkResult {
	result := &BulkResult{Succeeded: []string{}, Failed: map[string]string{}}
	var mu sync.Mutex
	seen := make(map[string]struct{}, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkConcurrency)
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		id := id
		g.Go(func() error {
			err := fn(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed[id] = UserMessage(err)
				return nil
			}
			result.Succeeded = append(result.Succeeded, id)
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(result.Succeeded)
	return result
}
