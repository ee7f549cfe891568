package config

import (
	"strings"
	"testing"
)

func TestParsePairsEscapedComma(t *testing.T) {
	pairs, err := ParsePairs(`a=1\,2,b=3`)
	if err != nil {
		t.Fatalf("ParsePairs: %v", err)
	}
	want := []Pair{{Key: "a", Value: "1,2"}, {Key: "b", Value: "3"}}
	if len(pairs) != len(want) {
		t.Fatalf("got %v, want %v", pairs, want)
	}
	for i := range want {
		if pairs[i] != want[i] {
			t.Fatalf("pair %d: got %+v, want %+v", i, pairs[i], want[i])
		}
	}
}

func TestOptionsResolveListAndScalar(t *testing.T) {
	o := &Options{}
	o.Append("@command", "tar")
	o.Append("@command", "--exclude=./c")
	o.Append("type", "tar")
	o.Append("type", "tar2")

	if got, _ := o.Get("type"); got != "tar2" {
		t.Fatalf("scalar last-write-wins: got %q", got)
	}
	list := o.GetList("@command")
	if len(list) != 2 || list[0] != "tar" || list[1] != "--exclude=./c" {
		t.Fatalf("list accumulation: got %v", list)
	}
}

func TestPresetSplicingS8(t *testing.T) {
	dir := t.TempDir()
	ps, err := LoadPresetStore(dir)
	if err != nil {
		t.Fatalf("LoadPresetStore: %v", err)
	}

	set := func(name string, opts string) {
		pairs, err := ParsePairs(opts)
		if err != nil {
			t.Fatalf("ParsePairs(%q): %v", opts, err)
		}
		ps.Set(name, pairs)
	}

	set("escape-path", `escaped-path={{.Path|clean|replace "/" "-"|trimSuffix "-"}}`)
	set("src", "state-file=/var/lib/uback/state/{{.EscapedPath}}.json")
	set("src", "key-file=/etc/uback/backup.pub")
	set("tar-src", "type=tar")
	set("tar-src", "preset=escape-path")
	set("tar-src", "preset=src")

	resolved, err := Resolve("path=/etc,preset=tar-src", ps)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	got := strings.Join(resolved.EvalLines(), "\n")
	want := strings.Join([]string{
		"EscapedPath: -etc",
		"KeyFile: /etc/uback/backup.pub",
		"Path: /etc",
		"StateFile: /var/lib/uback/state/-etc.json",
		"Type: tar",
	}, "\n")
	if got != want {
		t.Fatalf("EvalLines:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestPresetCycleRejected(t *testing.T) {
	dir := t.TempDir()
	ps, _ := LoadPresetStore(dir)
	ps.Set("a", []Pair{{Key: "preset", Value: "b"}})
	ps.Set("b", []Pair{{Key: "preset", Value: "a"}})

	if _, err := Resolve("preset=a", ps); err == nil {
		t.Fatalf("expected cycle error, got nil")
	}
}

func TestPresetSetAppends(t *testing.T) {
	dir := t.TempDir()
	ps, _ := LoadPresetStore(dir)
	ps.Set("tar-src", []Pair{{Key: "@Command", Value: "sudo"}})
	ps.Set("tar-src", []Pair{{Key: "@Command", Value: "tar"}})

	pairs, ok := ps.Get("tar-src")
	if !ok {
		t.Fatalf("expected preset to exist")
	}
	want := []Pair{{Key: "@Command", Value: "sudo"}, {Key: "@Command", Value: "tar"}}
	if len(pairs) != len(want) || pairs[0] != want[0] || pairs[1] != want[1] {
		t.Fatalf("got %v, want %v", pairs, want)
	}
}

func TestPresetStoreSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ps, err := LoadPresetStore(dir)
	if err != nil {
		t.Fatalf("LoadPresetStore: %v", err)
	}
	ps.Set("p", []Pair{{Key: "a", Value: "1"}})
	if err := ps.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	ps2, err := LoadPresetStore(dir)
	if err != nil {
		t.Fatalf("LoadPresetStore (reload): %v", err)
	}
	pairs, ok := ps2.Get("p")
	if !ok || len(pairs) != 1 || pairs[0].Value != "1" {
		t.Fatalf("got %v", pairs)
	}
}
