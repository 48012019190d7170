package search

import "testing"

func TestTaskBisect(t *testing.T) {
	tests := []struct {
		from, to int
		wantMid  int
	}{
		{0, 1000000, 500000},
		{0, 1, 0},
		{10, 13, 11},
		{500001, 1000000, 750000},
	}
	for _, tt := range tests {
		task := Task{Query: "q", SizeFrom: tt.from, SizeTo: tt.to, Page: 4, PageSize: 100}
		left, right := task.Bisect()

		if left.SizeFrom != tt.from || left.SizeTo != tt.wantMid {
			t.Errorf("left of %d..%d = %s", tt.from, tt.to, left.RangeKey())
		}
		if right.SizeFrom != tt.wantMid+1 || right.SizeTo != tt.to {
			t.Errorf("right of %d..%d = %s", tt.from, tt.to, right.RangeKey())
		}
		if left.Page != 1 || right.Page != 1 {
			t.Error("children should start at page 1")
		}
		if left.SizeTo >= right.SizeFrom {
			t.Error("children must be disjoint")
		}
	}
}

func TestTaskFlipOrder(t *testing.T) {
	task := Task{Order: OrderDesc, Page: 3}
	flipped := task.FlipOrder()
	if flipped.Order != OrderAsc || !flipped.Stop || flipped.Page != 1 {
		t.Errorf("FlipOrder() = %+v", flipped)
	}
	if back := flipped.FlipOrder(); back.Order != OrderDesc {
		t.Errorf("flip of asc = %s", back.Order)
	}
	if task.Stop {
		t.Error("FlipOrder must not modify the receiver")
	}
}

func TestTaskExtend(t *testing.T) {
	task := Task{Splitter: "ab", Page: 2}
	child := task.Extend('c')
	if child.Splitter != "abc" || child.Page != 1 {
		t.Errorf("Extend() = %+v", child)
	}
}

func TestTaskText(t *testing.T) {
	task := Task{Query: `"lib" filename:Podfile`, SizeFrom: 10, SizeTo: 20}
	if got := task.Text(); got != `"lib" filename:Podfile size:10..20` {
		t.Errorf("Text() = %q", got)
	}
	task.Splitter = "x1"
	if got := task.Text(); got != `"lib" filename:Podfile x1 size:10..20` {
		t.Errorf("Text() with splitter = %q", got)
	}
	if !(Task{SizeFrom: 5, SizeTo: 5}).Degenerate() {
		t.Error("5..5 should be degenerate")
	}
}

func TestMatchKey(t *testing.T) {
	m := Match{RepoName: "o/r", Name: "Podfile", SHA: "abc", Path: "ios/Podfile"}
	if m.Key() != "o/r_Podfile_abc" {
		t.Errorf("Key() = %q", m.Key())
	}
	other := m
	other.Path = "other/Podfile"
	if other.Key() != m.Key() {
		t.Error("path must not affect identity")
	}
}
