package model

import "testing"

func TestStageCanAdvanceToMonotonic(t *testing.T) {
	if !StageQueued.CanAdvanceTo(StageMSA) {
		t.Fatal("expected QUEUED -> MSA to be allowed")
	}
	if StageModel.CanAdvanceTo(StageQueued) {
		t.Fatal("expected MODEL -> QUEUED to be rejected")
	}
}

func TestStageDoneOnlyFromRelaxOrQA(t *testing.T) {
	if !StageRelax.CanAdvanceTo(StageDone) {
		t.Fatal("expected RELAX -> DONE to be allowed")
	}
	if !StageQA.CanAdvanceTo(StageDone) {
		t.Fatal("expected QA -> DONE to be allowed")
	}
	if StageMSA.CanAdvanceTo(StageDone) {
		t.Fatal("expected MSA -> DONE to be rejected")
	}
}

func TestStageErrorFromAnyNonTerminal(t *testing.T) {
	if !StageMSA.CanAdvanceTo(StageError) {
		t.Fatal("expected MSA -> ERROR to be allowed")
	}
	if StageDone.CanAdvanceTo(StageError) {
		t.Fatal("expected DONE -> ERROR to be rejected")
	}
	if StageError.CanAdvanceTo(StageError) {
		t.Fatal("expected ERROR -> ERROR to be rejected")
	}
}

func TestStatusIsTerminal(t *testing.T) {
	for _, s := range []Status{StatusComplete, StatusFailed, StatusCanceled} {
		if !s.IsTerminal() {
			t.Fatalf("expected %s to be terminal", s)
		}
	}
	for _, s := range []Status{StatusQueued, StatusRunning, StatusPartial} {
		if s.IsTerminal() {
			t.Fatalf("expected %s to be non-terminal", s)
		}
	}
}

func TestClampProgress(t *testing.T) {
	cases := map[int]int{-5: 0, 0: 0, 50: 50, 100: 100, 150: 100}
	for in, want := range cases {
		if got := ClampProgress(in); got != want {
			t.Fatalf("ClampProgress(%d) = %d, want %d", in, got, want)
		}
	}
}
