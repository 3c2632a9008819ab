package workflow

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestResolveWholeReferenceKeepsType(t *testing.T) {
	state := State{
		"articles": []any{
			map[string]any{"href": "/a", "text": "A"},
			map[string]any{"href": "/b", "text": "B"},
		},
		"count": 2,
	}

	resolved := Resolve("${articles}", state)
	list, ok := resolved.([]any)
	assert.True(t, ok, "a whole reference must keep the value's type")
	assert.Len(t, list, 2)

	assert.Equal(t, 2, Resolve("${count}", state))
}

func TestResolveInlineStringifies(t *testing.T) {
	state := State{"page": 3, "site": "example"}

	assert.Equal(t, "https://example.com/p/3", Resolve("https://${site}.com/p/${page}", state))
}

func TestResolveDottedPath(t *testing.T) {
	state := State{
		"current_item": map[string]any{
			"href": "https://example.com/post",
			"meta": map[string]any{"lang": "en"},
		},
	}

	assert.Equal(t, "https://example.com/post", Resolve("${current_item.href}", state))
	assert.Equal(t, "en", Resolve("${current_item.meta.lang}", state))
}

func TestResolveUnresolvableStaysVerbatim(t *testing.T) {
	state := State{"known": "x"}

	assert.Equal(t, "${missing}", Resolve("${missing}", state))
	assert.Equal(t, "a ${missing} b", Resolve("a ${missing} b", state))
	assert.Equal(t, "${known.too.deep}", Resolve("${known.too.deep}", state))
}

func TestResolveRecursesThroughStructures(t *testing.T) {
	state := State{"title": "Hello", "tags": []any{"go", "web"}}

	input := map[string]any{
		"heading": "${title}",
		"all":     "${tags}",
		"nested":  []any{"${title}", "static"},
	}
	got := Resolve(input, state)

	want := map[string]any{
		"heading": "Hello",
		"all":     []any{"go", "web"},
		"nested":  []any{"Hello", "static"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("resolved structure mismatch (-want +got):\n%s", diff)
	}

	// The input must not be mutated.
	assert.Equal(t, "${title}", input["heading"])
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy("false"))
	assert.False(t, Truthy(0))
	assert.False(t, Truthy([]any{}))
	assert.False(t, Truthy(map[string]any{}))

	assert.True(t, Truthy("yes"))
	assert.True(t, Truthy(1))
	assert.True(t, Truthy([]any{1}))
	assert.True(t, Truthy(true))
}
