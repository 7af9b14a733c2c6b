package reply

import (
	"reflect"
	"testing"

	"laureate/internal/domain"
)

func TestParse_ButtonsOnly(t *testing.T) {
	got := Parse("__BUTTONS__A,B,C")
	want := domain.ButtonReply{Body: "", Options: []string{"A", "B", "C"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestParse_ButtonsWithProse(t *testing.T) {
	got := Parse("Great! What next?\n__BUTTONS__ Post-UTME Practice , JAMB Practice,, ")
	want := domain.ButtonReply{Body: "Great! What next?", Options: []string{"Post-UTME Practice", "JAMB Practice"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestParse_ButtonsWithoutOptions(t *testing.T) {
	got, ok := Parse("Pick one __BUTTONS__ , ,").(domain.ButtonReply)
	if !ok {
		t.Fatal("expected ButtonReply")
	}
	if got.Body != "Pick one" || len(got.Options) != 0 {
		t.Fatalf("unexpected reply %#v", got)
	}
}

func TestParse_ListDiscardsProse(t *testing.T) {
	got := Parse("Hi there __LIST__X|Y|Z|W|O1,O2")
	want := domain.ListReply{
		ButtonLabel:  "X",
		Header:       "Y",
		Body:         "Z",
		SectionTitle: "W",
		Options:      []string{"O1", "O2"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestParse_ListTrimsParts(t *testing.T) {
	got, ok := Parse("__LIST__ Select an Answer | Chemistry Question |Which is a noble gas?| Options |Oxygen, Nitrogen ,Argon").(domain.ListReply)
	if !ok {
		t.Fatal("expected ListReply")
	}
	if got.ButtonLabel != "Select an Answer" || got.Header != "Chemistry Question" || got.SectionTitle != "Options" {
		t.Fatalf("parts not trimmed: %#v", got)
	}
	if !reflect.DeepEqual(got.Options, []string{"Oxygen", "Nitrogen", "Argon"}) {
		t.Fatalf("options not trimmed: %#v", got.Options)
	}
}

func TestParse_ListWrongPartCount(t *testing.T) {
	got := Parse("__LIST__only|two")
	if got != (domain.TextReply{Body: ListErrorText}) {
		t.Fatalf("got %#v", got)
	}
	if !IsListFailure(got) {
		t.Fatal("IsListFailure should recognize the apology")
	}

	got = Parse("__LIST__a|b|c|d|e|f")
	if got != (domain.TextReply{Body: ListErrorText}) {
		t.Fatalf("six parts: got %#v", got)
	}
}

func TestParse_ListWinsOverButtons(t *testing.T) {
	got := Parse("Choose __BUTTONS__A,B __LIST__X|Y|Z|W|O1")
	if _, ok := got.(domain.ListReply); !ok {
		t.Fatalf("expected ListReply, got %#v", got)
	}

	got = Parse("__LIST__X|Y|Z|W|O1 __BUTTONS__A")
	list, ok := got.(domain.ListReply)
	if !ok {
		t.Fatalf("expected ListReply, got %#v", got)
	}
	if list.Options[0] != "O1 __BUTTONS__A" {
		t.Fatalf("buttons marker after a list is part of the payload, got %q", list.Options[0])
	}
}

func TestParse_FirstMarkerOccurrenceWins(t *testing.T) {
	got := Parse("Body __BUTTONS__A,B __BUTTONS__C")
	want := domain.ButtonReply{Body: "Body", Options: []string{"A", "B __BUTTONS__C"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestParse_Empty(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\t"} {
		if got := Parse(in); got != (domain.TextReply{Body: FallbackText}) {
			t.Fatalf("Parse(%q) = %#v", in, got)
		}
	}
}

func TestParse_PlainText(t *testing.T) {
	if got := Parse("  Correct! Well done.\n"); got != (domain.TextReply{Body: "Correct! Well done."}) {
		t.Fatalf("got %#v", got)
	}
}

func TestParse_MarkersAreCaseSensitive(t *testing.T) {
	got := Parse("see __list__a|b|c|d|e and __buttons__x")
	if got != (domain.TextReply{Body: "see __list__a|b|c|d|e and __buttons__x"}) {
		t.Fatalf("lowercase markers should be plain text, got %#v", got)
	}
}

func TestParse_Total(t *testing.T) {
	inputs := []string{
		"__LIST__", "__BUTTONS__", "__LIST____BUTTONS__", "|||||", "__LIST__||||",
		"__BUTTONS____LIST__", ",,,,", "__LIST__a|b|c|d|", "\x00__LIST__\xff|\xfe|||",
	}
	for _, in := range inputs {
		r := Parse(in)
		if r == nil {
			t.Fatalf("Parse(%q) returned nil", in)
		}
		switch r.(type) {
		case domain.TextReply, domain.ButtonReply, domain.ListReply:
		default:
			t.Fatalf("Parse(%q) returned unexpected type %T", in, r)
		}
	}
}
