// Package parallel は行単位で独立な処理をCPUコア数に応じて分割実行するヘルパーです。
// 乱数の消費順序が結果に影響する処理（サンプリング）には使わず、
// 行列組み立てや勾配・予測計算のような決定的な処理にのみ使います。
package parallel

import (
	"runtime"
	"sync"
)

// Workers は items 件を処理する際のワーカー数を返す
func Workers(items int) int {
	n := runtime.NumCPU()
	if n > items {
		n = items
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Parallelize は items を連続した区間 [start, end) に分割し、fn を並列に実行する
// 全ての区間の処理が終わるまで戻らない
func Parallelize(items int, fn func(start, end int)) {
	if items <= 0 {
		return
	}

	numWorkers := Workers(items)
	// 切り上げ除算
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for start := 0; start < items; start += chunkSize {
		end := start + chunkSize
		if end > items {
			end = items
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold は items が threshold を超える場合のみ並列化する
// 閾値以下では呼び出し元のゴルーチンで fn(0, items) を一度だけ実行する
func ParallelizeWithThreshold(items, threshold int, fn func(start, end int)) {
	if items <= threshold {
		if items > 0 {
			fn(0, items)
		}
		return
	}
	Parallelize(items, fn)
}
