package cache

import (
	"context"
	"fmt"
	"testing"
)

func BenchmarkMemory_Get_Hit(b *testing.B) {
	c := NewMemory[[]byte](DefaultConfig())
	_ = c.Set("bench-key", []byte("bench-value"))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Get("bench-key")
	}
}

func BenchmarkMemory_Get_Miss(b *testing.B) {
	c := NewMemory[[]byte](DefaultConfig())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Get("missing")
	}
}

func BenchmarkMemory_Set_Evicting(b *testing.B) {
	c := NewMemory[int](Config{MaxEntries: 100})
	keys := make([]string, 1000)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%d", i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Set(keys[i%len(keys)], i)
	}
}

func BenchmarkMemory_Concurrent_ReadHeavy(b *testing.B) {
	c := NewMemory[int](DefaultConfig())
	for i := range 100 {
		_ = c.Set(fmt.Sprintf("key-%d", i), i)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if i%10 == 0 {
				_ = c.Set(fmt.Sprintf("key-%d", i%100), i)
			} else {
				_, _ = c.Get(fmt.Sprintf("key-%d", i%100))
			}
			i++
		}
	})
}

func BenchmarkDefaultKeyer_Key(b *testing.B) {
	keyer := NewDefaultKeyer()
	input := map[string]any{"content": "func main() {}", "language": "go", "line": 3}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = keyer.Key("completion", input)
	}
}

func BenchmarkLoader_Hit(b *testing.B) {
	loader := NewLoader[string](NewMemory[string](DefaultConfig()), nil)
	load := func(context.Context) (string, bool, error) { return "v", true, nil }
	_, _, _ = loader.Load(context.Background(), "completion", "x", load)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = loader.Load(context.Background(), "completion", "x", load)
	}
}

func BenchmarkValidateKey(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = ValidateKey("cache:completion:0123456789abcdef")
	}
}
