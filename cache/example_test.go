package cache_test

import (
	"context"
	"fmt"

	"github.com/jonwraymond/depguard/cache"
)

func ExampleNewMemory() {
	c := cache.NewMemory[string](cache.Config{MaxEntries: 2})

	_ = c.Set("a", "first")
	_ = c.Set("b", "second")
	_ = c.Set("c", "third") // evicts a, the earliest insertion

	_, ok := c.Get("a")
	fmt.Println(ok)
	v, _ := c.Get("c")
	fmt.Println(v)
	// Output:
	// false
	// third
}

func ExampleDefaultKeyer_Key() {
	keyer := cache.NewDefaultKeyer()

	k1, _ := keyer.Key("completion", map[string]any{"b": 2, "a": 1})
	k2, _ := keyer.Key("completion", map[string]any{"a": 1, "b": 2})
	fmt.Println(k1 == k2)
	// Output: true
}

func ExampleLoader_Load() {
	loader := cache.NewLoader[string](cache.NewMemory[string](cache.DefaultConfig()), nil)

	load := func(ctx context.Context) (string, bool, error) {
		fmt.Println("computing")
		return "result", true, nil
	}

	v, hit, _ := loader.Load(context.Background(), "completion", "input", load)
	fmt.Println(v, hit)
	v, hit, _ = loader.Load(context.Background(), "completion", "input", load)
	fmt.Println(v, hit)
	// Output:
	// computing
	// result false
	// result true
}

func ExampleValidateKey() {
	fmt.Println(cache.ValidateKey("cache:completion:abc"))
	fmt.Println(cache.ValidateKey(""))
	// Output:
	// <nil>
	// cache: key is invalid
}
