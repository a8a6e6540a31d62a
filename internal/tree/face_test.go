package tree

import (
	"reflect"
	"testing"
)

func TestRevAndAxis(t *testing.T) {
	for k := 0; k < 6; k++ {
		if Rev(Rev(k)) != k {
			t.Errorf("Rev not involutive at %d", k)
		}
	}
	if Axis(0) != 0 || Axis(1) != 0 || Axis(2) != 1 || Axis(3) != 1 || Axis(4) != 2 || Axis(5) != 2 {
		t.Fatalf("unexpected axis mapping")
	}
	if !IsLow(0) || IsLow(1) || !IsLow(2) || IsLow(3) {
		t.Fatalf("unexpected low/high mapping")
	}
}

func TestChildOffsetRoundTrip(t *testing.T) {
	for dim := 2; dim <= 3; dim++ {
		n := NumChildren(dim)
		for c := 0; c < n; c++ {
			off := ChildOffset(dim, c)
			if got := ChildIndex(off); got != c {
				t.Fatalf("dim=%d child=%d round trip got %d via offset %v", dim, c, got, off)
			}
		}
	}
}

func TestChildrenOnFace2D(t *testing.T) {
	// children 0,1,2,3 correspond to offsets (0,0),(1,0),(0,1),(1,1)
	got := ChildrenOnFace(2, 0) // low-x face: offset[0] == 0
	want := []int{0, 2}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ChildrenOnFace(2,0) = %v, want %v", got, want)
	}
	got = ChildrenOnFace(2, 3) // high-y face: offset[1] == 1
	want = []int{2, 3}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ChildrenOnFace(2,3) = %v, want %v", got, want)
	}
}

func TestChildrenOnFace3D(t *testing.T) {
	got := ChildrenOnFace(3, 4) // low-z face: offset[2] == 0
	if len(got) != 4 {
		t.Fatalf("expected 4 children on a 3D face, got %d", len(got))
	}
	for _, c := range got {
		if ChildOffset(3, c)[2] != 0 {
			t.Fatalf("child %d not on low-z face", c)
		}
	}
}
