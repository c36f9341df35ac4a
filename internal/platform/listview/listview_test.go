package listview

import (
	"reflect"
	"testing"
)

func identity(s string) string { return s }

func TestFilter(t *testing.T) {
	contacts := []string{"Shelby Goode", "Robert Bacinis", "John Carlo"}

	tests := []struct {
		query string
		want  []string
	}{
		{"ro", []string{"Robert Bacinis"}},
		{"RO", []string{"Robert Bacinis"}},
		{"o", []string{"Shelby Goode", "Robert Bacinis", "John Carlo"}},
		{"", []string{"Shelby Goode", "Robert Bacinis", "John Carlo"}},
		{"  ", []string{"Shelby Goode", "Robert Bacinis", "John Carlo"}},
		{"zzz", []string{}},
	}

	for _, tt := range tests {
		got := Filter(contacts, tt.query, identity)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Filter(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestFilter_ByField(t *testing.T) {
	type row struct{ ID, Name string }
	rows := []row{{"1", "Ada Lovelace"}, {"2", "Grace Hopper"}, {"3", "Alan Turing"}}
	got := Filter(rows, "a", func(r row) string { return r.Name })
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	got = Filter(rows, "hop", func(r row) string { return r.Name })
	if len(got) != 1 || got[0].ID != "2" {
		t.Errorf("unexpected result %v", got)
	}
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}

	p := Paginate(items, 3, 0)
	if !reflect.DeepEqual(p.Items, []int{1, 2, 3}) || p.PageCount() != 3 || !p.HasNext() {
		t.Errorf("unexpected first page %+v", p)
	}

	p = Paginate(items, 3, 2)
	if !reflect.DeepEqual(p.Items, []int{7}) || p.HasNext() {
		t.Errorf("unexpected last page %+v", p)
	}

	p = Paginate(items, 3, 9)
	if p.Index != 2 {
		t.Errorf("expected index clamped to 2, got %d", p.Index)
	}

	p = Paginate([]int{}, 5, 0)
	if len(p.Items) != 0 || p.PageCount() != 1 {
		t.Errorf("unexpected empty page %+v", p)
	}
}

func TestWindow(t *testing.T) {
	items := []int{1, 2, 3}
	if got := Window(items, 1, 10); !reflect.DeepEqual(got, []int{2, 3}) {
		t.Errorf("unexpected window %v", got)
	}
	if got := Window(items, 5, 2); len(got) != 0 {
		t.Errorf("expected empty window, got %v", got)
	}
}
