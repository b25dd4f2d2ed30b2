package queue

import (
	"context"
	"runtime"
	"sync/atomic"
	"testing"

	ring "github.com/randomizedcoder/go-lock-free-ring"
)

// 单生产者单消费者：有界队列
func BenchmarkBoundedQueue_SPSC(b *testing.B) {
	q := MustNew[int](1024)
	ctx := context.Background()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			if _, err := q.Pop(ctx); err != nil {
				return
			}
		}
	}()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := q.Push(ctx, i); err != nil {
			b.Fatal(err)
		}
	}
	b.StopTimer()
	q.Close()
	<-done
}

// 单生产者单消费者：无锁环形队列
func BenchmarkSPSCRing_SPSC(b *testing.B) {
	r, err := NewSPSCRing[int](1024)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			if _, err := r.Pop(ctx); err != nil {
				return
			}
		}
	}()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := r.Push(ctx, i); err != nil {
			b.Fatal(err)
		}
	}
	b.StopTimer()
	r.Close()
	<-done
}

// 单生产者单消费者：带缓冲的 channel 作为基线
func BenchmarkChannel_SPSC(b *testing.B) {
	ch := make(chan int, 1024)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for range ch {
		}
	}()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ch <- i
	}
	b.StopTimer()
	close(ch)
	<-done
}

// 多生产者单消费者：有界队列
func BenchmarkBoundedQueue_MPSC_4P(b *testing.B) {
	q := MustNew[int](1024)
	ctx := context.Background()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			if _, err := q.Pop(ctx); err != nil {
				return
			}
		}
	}()

	b.SetParallelism(4)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if err := q.Push(ctx, i); err != nil {
				b.Error(err)
				return
			}
			i++
		}
	})
	b.StopTimer()
	q.Close()
	<-done
}

// 多生产者单消费者：分片无锁环作为对照
func BenchmarkLockFreeRing_MPSC_4P(b *testing.B) {
	r, err := ring.NewShardedRing(1024, 4)
	if err != nil {
		b.Fatal(err)
	}
	done := make(chan struct{})
	consumerDone := make(chan struct{})

	go func() {
		defer close(consumerDone)
		for {
			select {
			case <-done:
				return
			default:
				r.TryRead()
			}
		}
	}()

	var producerID atomic.Uint64
	b.SetParallelism(4)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		pid := producerID.Add(1) - 1
		i := 0
		for pb.Next() {
			for !r.Write(pid, i) {
				runtime.Gosched()
			}
			i++
		}
	})
	b.StopTimer()
	close(done)
	<-consumerDone
}

// 多生产者多消费者：有界队列
func BenchmarkBoundedQueue_MPMC(b *testing.B) {
	q := MustNew[int](256)
	ctx := context.Background()

	consumers := runtime.GOMAXPROCS(0)
	done := make(chan struct{}, consumers)
	for c := 0; c < consumers; c++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for {
				if _, err := q.Pop(ctx); err != nil {
					return
				}
			}
		}()
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if err := q.Push(ctx, i); err != nil {
				b.Error(err)
				return
			}
			i++
		}
	})
	b.StopTimer()
	q.Close()
	for c := 0; c < consumers; c++ {
		<-done
	}
}
