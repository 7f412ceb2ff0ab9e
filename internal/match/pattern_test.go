package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		input   string
		want    bool
	}{
		{"empty matches all", "", "anything", true},
		{"empty matches empty", "", "", true},
		{"regex prefix match", "regex:abc.*", "abcdef", true},
		{"regex anchored at start", "regex:abc.*", "xabc", false},
		{"regex location label", "regex:location:.*Berlin", "location:Berlin-Mitte", true},
		{"literal whole word", "abc", "xx abc yy", true},
		{"literal inside word", "abc", "xxabcyy", false},
		{"literal exact", "abc", "abc", true},
		{"literal escapes metacharacters", "v1.2", "v1x2", false},
		{"literal with dots", "v1.2", "fw v1.2 beta", true},
		{"literal path", "root/folder1", "root/folder1/sub", true},
		{"invalid regex matches all", "regex:[unclosed", "whatever", true},
		{"invalid regex matches empty", "regex:(", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Compile(tt.pattern, zap.NewNop())
			assert.Equal(t, tt.want, p.Match(tt.input), "Compile(%q).Match(%q)", tt.pattern, tt.input)
		})
	}
}

func TestPatternMatchAny(t *testing.T) {
	p := Compile("regex:env:prod", nil)
	assert.True(t, p.MatchAny([]string{"site:vienna", "env:production"}))
	assert.False(t, p.MatchAny([]string{"site:vienna"}))
	assert.False(t, p.MatchAny(nil))
	assert.False(t, Any.MatchAny(nil), "no values, nothing to match")
}

func TestFindBy(t *testing.T) {
	type rec struct{ id, name string }
	items := []rec{{"1", "a"}, {"2", "b"}, {"3", "b"}}
	byName := func(r rec) string { return r.name }

	got, ok := FindBy(items, byName, "b")
	assert.True(t, ok)
	assert.Equal(t, "2", got.id, "first match wins")

	_, ok = FindBy(items, byName, "z")
	assert.False(t, ok)

	_, ok = FindBy(items, byName, "")
	assert.False(t, ok)
}

func TestResolvePrecedence(t *testing.T) {
	type rec struct{ serial, name string }
	items := []rec{{"S1", "alpha"}, {"S2", "beta"}}
	serial := func(r rec) string { return r.serial }
	name := func(r rec) string { return r.name }

	got, key, ok := Resolve(items,
		Key[rec]{"serial_number", serial, "S2"},
		Key[rec]{"name", name, "alpha"},
	)
	assert.True(t, ok)
	assert.Equal(t, "serial_number", key)
	assert.Equal(t, "beta", got.name)

	// A present but unknown serial does not fall back to the name.
	_, key, ok = Resolve(items,
		Key[rec]{"serial_number", serial, "S9"},
		Key[rec]{"name", name, "alpha"},
	)
	assert.False(t, ok)
	assert.Equal(t, "serial_number", key)

	_, key, ok = Resolve(items,
		Key[rec]{"serial_number", serial, ""},
		Key[rec]{"name", name, ""},
	)
	assert.False(t, ok)
	assert.Empty(t, key)
}
