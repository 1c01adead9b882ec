// SPDX-License-Identifier: MPL-2.0

package compose

import (
	"errors"
	"slices"
	"strings"
	"testing"
)

var (
	testVersion = NewKeyWithDefault("project_version", "version", "1.0")
	testList    = NewKey[[]string]("sources", "source roots")
	testCount   = NewKey[int]("count", "a number")
)

type configSet map[string]*Configuration

func (s configSet) Configuration(name string) (*Configuration, bool) {
	c, ok := s[name]
	return c, ok
}

func TestConfigApplyIsPure(t *testing.T) {
	t.Parallel()

	base, err := Config{}.Apply(Add(testList, "a"))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	derived, err := base.Apply(Add(testList, "b"), Set(testVersion, "2.0"))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if got := Get(base, testList); !slices.Equal(got, []string{"a"}) {
		t.Errorf("base sources = %v, want [a]", got)
	}
	if got := Get(base, testVersion); got != "1.0" {
		t.Errorf("base version = %q, want default 1.0", got)
	}
	if got := Get(derived, testList); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("derived sources = %v, want [a b]", got)
	}
}

func TestModifyCannotMutatePriorConfig(t *testing.T) {
	t.Parallel()

	base, err := Config{}.Apply(Add(testList, "keep", "drop"))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	// slices.DeleteFunc edits in place; the base must still see both entries.
	filtered, err := base.Apply(Filter(testList, func(s string) bool { return s != "drop" }))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if got := Get(base, testList); !slices.Equal(got, []string{"keep", "drop"}) {
		t.Errorf("base sources = %v, want [keep drop]", got)
	}
	if got := Get(filtered, testList); !slices.Equal(got, []string{"keep"}) {
		t.Errorf("filtered sources = %v, want [keep]", got)
	}
}

func TestModifyReceivesDefault(t *testing.T) {
	t.Parallel()

	cfg, err := Config{}.Apply(Modify(testVersion, func(v string) string { return v + "-SNAPSHOT" }))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got := Get(cfg, testVersion); got != "1.0-SNAPSHOT" {
		t.Errorf("version = %q, want 1.0-SNAPSHOT", got)
	}
}

func TestKeyTypeMismatch(t *testing.T) {
	t.Parallel()

	clash := NewKey[int]("sources", "same name, other type")
	cfg, err := Config{}.Apply(Add(testList, "a"))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	tests := []struct {
		name string
		frag Fragment
	}{
		{"modify", Modify(clash, func(v int) int { return v + 1 })},
		{"set", Set(clash, 3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := cfg.Apply(tt.frag)
			var typeErr *KeyTypeError
			if !errors.As(err, &typeErr) {
				t.Fatalf("Apply() error = %v, want KeyTypeError", err)
			}
			if typeErr.Key != "sources" {
				t.Errorf("KeyTypeError.Key = %q, want sources", typeErr.Key)
			}
		})
	}

	if got := Get(cfg, testList); !slices.Equal(got, []string{"a"}) {
		t.Errorf("original value = %v after rejected fragments", got)
	}
}

func TestArchetypeOrderIsSignificant(t *testing.T) {
	t.Parallel()

	a1 := NewArchetype("first", "", nil, Set(testVersion, "1"))
	a2 := NewArchetype("second", "", nil, Set(testVersion, "2"))

	forward, err := Layering{Archetypes: []*Archetype{a1, a2}}.Base(Config{})
	if err != nil {
		t.Fatalf("Base() error = %v", err)
	}
	backward, err := Layering{Archetypes: []*Archetype{a2, a1}}.Base(Config{})
	if err != nil {
		t.Fatalf("Base() error = %v", err)
	}

	if got := Get(forward, testVersion); got != "2" {
		t.Errorf("forward version = %q, want 2", got)
	}
	if got := Get(backward, testVersion); got != "1" {
		t.Errorf("backward version = %q, want 1", got)
	}
}

func TestArchetypeCompositionEqualsSequentialApplication(t *testing.T) {
	t.Parallel()

	f1 := []Fragment{Add(testList, "a"), Set(testCount, 1)}
	f2 := []Fragment{Add(testList, "b"), Modify(testCount, func(n int) int { return n * 10 })}
	a1 := NewArchetype("a1", "", nil, f1...)
	a2 := NewArchetype("a2", "", nil, f2...)

	composed, err := Layering{Archetypes: []*Archetype{a1, a2}}.Base(Config{})
	if err != nil {
		t.Fatalf("Base() error = %v", err)
	}
	sequential, err := Config{}.Apply(append(slices.Clone(f1), f2...)...)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !composed.Equal(sequential) {
		t.Errorf("composed %v != sequential %v", composed.Keys(), sequential.Keys())
	}
}

func TestParentArchetypeAppliedFirstAndOnce(t *testing.T) {
	t.Parallel()

	root := NewArchetype("java", "", nil, Add(testList, "src/main/java"))
	plugin := NewArchetype("plugin", "", root, Add(testList, "src/plugin"))
	layer := NewArchetype("junit", "", root, Add(testList, "src/test/java"))

	cfg, err := Layering{Archetypes: []*Archetype{plugin, layer}}.Base(Config{})
	if err != nil {
		t.Fatalf("Base() error = %v", err)
	}
	want := []string{"src/main/java", "src/plugin", "src/test/java"}
	if got := Get(cfg, testList); !slices.Equal(got, want) {
		t.Errorf("sources = %v, want %v", got, want)
	}
}

func TestContextIsolation(t *testing.T) {
	t.Parallel()

	arch := NewArchetype("base", "", nil, Add(testList, "main"), Set(testVersion, "1.6"))
	plain := Layering{Archetypes: []*Archetype{arch}}
	withTesting := plain.Clone()
	withTesting.Overrides = map[string][]Fragment{
		"testing": {Add(testList, "test"), Set(testVersion, "test-version")},
	}

	compileWith, err := withTesting.Evaluate(Config{}, nil, "compile")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	compileWithout, err := plain.Evaluate(Config{}, nil, "compile")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !compileWith.Equal(compileWithout) {
		t.Errorf("testing override leaked into compile context")
	}

	testCfg, err := withTesting.Evaluate(Config{}, nil, "testing")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if got := Get(testCfg, testList); !slices.Equal(got, []string{"main", "test"}) {
		t.Errorf("testing sources = %v, want [main test]", got)
	}

	// The base evaluated again after testing must be unchanged.
	again, err := withTesting.Evaluate(Config{}, nil, "compile")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !again.Equal(compileWith) {
		t.Errorf("repeated evaluation differs")
	}
}

func TestUndefinedContextYieldsBase(t *testing.T) {
	t.Parallel()

	l := Layering{Fragments: []Fragment{Set(testVersion, "3")}}
	base, err := l.Base(Config{})
	if err != nil {
		t.Fatalf("Base() error = %v", err)
	}
	cfg, err := l.Evaluate(Config{}, configSet{}, "no-such-context")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !cfg.Equal(base) {
		t.Errorf("undefined context changed configuration")
	}
}

func TestSharedConfigurationThenOverride(t *testing.T) {
	t.Parallel()

	configs := configSet{
		"live-testing": NewConfiguration("live-testing", "", Set(testVersion, "1.16"), Add(testList, "src/live-test")),
	}
	l := Layering{
		Fragments: []Fragment{Add(testList, "src/main")},
		Overrides: map[string][]Fragment{
			"live-testing": {Modify(testVersion, func(v string) string { return v + "-R0.1" })},
		},
	}

	cfg, err := l.Evaluate(Config{}, configs, "live-testing")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if got := Get(cfg, testVersion); got != "1.16-R0.1" {
		t.Errorf("version = %q, want 1.16-R0.1", got)
	}
	prov := cfg.Provenance(testVersion.Name())
	if len(prov) != 2 || prov[0].Origin != "configuration:live-testing" || prov[1].Origin != "extend:live-testing" {
		t.Errorf("provenance = %+v", prov)
	}
}

func TestArchetypeExtensionAppliesInBase(t *testing.T) {
	t.Parallel()

	junit := NewArchetype("junit", "", nil, Add(testList, "junit-api", "junit-engine"))
	l := Layering{
		Archetypes: []*Archetype{junit},
		Overrides: map[string][]Fragment{
			"junit": {Filter(testList, func(s string) bool { return !strings.HasPrefix(s, "junit") })},
		},
	}

	cfg, err := l.Evaluate(Config{}, nil, "junit")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if got := Get(cfg, testList); len(got) != 0 {
		t.Errorf("sources = %v, want empty", got)
	}
	// The archetype itself keeps its fragments.
	if n := len(junit.Fragments()); n != 1 {
		t.Errorf("archetype fragments = %d, want 1", n)
	}
}

func TestLastSetWins(t *testing.T) {
	t.Parallel()

	cfg, err := Config{}.Apply(Set(testVersion, "a"), Set(testVersion, "b"))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got := Get(cfg, testVersion); got != "b" {
		t.Errorf("version = %q, want b", got)
	}
}

func TestExpand(t *testing.T) {
	t.Parallel()

	spigot := NewKey[string]("spigot_version", "")
	cfg, err := Config{}.Apply(Set(spigot, "1.14.4-R0.1-SNAPSHOT"), Set(testCount, 3))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"${spigot_version}", "1.14.4-R0.1-SNAPSHOT"},
		{"v${count}x", "v3x"},
		{"${missing}", "${missing}"},
		{"$HOME/${spigot_version", "$HOME/${spigot_version"},
	}
	for _, tt := range tests {
		if got := cfg.Expand(tt.in); got != tt.want {
			t.Errorf("Expand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateKeyName(t *testing.T) {
	t.Parallel()

	if err := ValidateKeyName("spigot_version"); err != nil {
		t.Errorf("ValidateKeyName(spigot_version) = %v", err)
	}
	for _, bad := range []string{"", "Spigot", "1abc", "with-dash"} {
		if err := ValidateKeyName(bad); !errors.Is(err, ErrInvalidKeyName) {
			t.Errorf("ValidateKeyName(%q) = %v, want ErrInvalidKeyName", bad, err)
		}
	}
}
