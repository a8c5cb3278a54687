package state

import (
	"errors"
	"testing"
)

func TestNewPopulatesRequestOnly(t *testing.T) {
	s := New("list files")
	if s.Request.Raw != "list files" {
		t.Errorf("Request.Raw = %q, want %q", s.Request.Raw, "list files")
	}
	if s.Request.ReceivedAt.IsZero() {
		t.Error("Request.ReceivedAt not set")
	}
	if !s.Populated(SectionRequest) {
		t.Error("request section not marked populated")
	}
	for _, sec := range []Section{SectionTask, SectionContext, SectionResult} {
		if s.Populated(sec) {
			t.Errorf("section %q populated at construction", sec)
		}
	}
	if s.Context.Env == nil {
		t.Error("Context.Env map missing at construction")
	}
}

func TestRequireSurfacesAccessError(t *testing.T) {
	s := New("req")
	err := s.Require("tool_selector", SectionRequest, SectionTask)
	var access *AccessError
	if !errors.As(err, &access) {
		t.Fatalf("Require error = %v, want AccessError", err)
	}
	if access.Stage != "tool_selector" {
		t.Errorf("Stage = %q, want tool_selector", access.Stage)
	}
	if access.Section != SectionTask {
		t.Errorf("Section = %q, want %q", access.Section, SectionTask)
	}
}

func TestRequireAfterMarkPopulated(t *testing.T) {
	s := New("req")
	s.MarkPopulated(SectionTask)
	s.MarkPopulated(SectionContext)
	if err := s.Require("response_generator", SectionRequest, SectionTask, SectionContext); err != nil {
		t.Fatalf("Require failed after populate: %v", err)
	}
	if err := s.Require("response_generator", SectionResult); err == nil {
		t.Error("Require passed for unpopulated result section")
	}
}

func TestSectionsCanonicalOrder(t *testing.T) {
	got := Sections()
	want := []Section{SectionRequest, SectionTask, SectionContext, SectionResult}
	if len(got) != len(want) {
		t.Fatalf("Sections() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Sections()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
