package graph

import (
	"reflect"
	"testing"
)

func TestExtractWikiLinks(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "plain link",
			body: "see [[Target Note]] for details",
			want: []string{"Target Note"},
		},
		{
			name: "display text ignored",
			body: "see [[Target|the target]] here",
			want: []string{"Target"},
		},
		{
			name: "section anchor ignored",
			body: "see [[Target#Heading]] here",
			want: []string{"Target"},
		},
		{
			name: "display and section combined",
			body: "[[Target#Heading|shown]]",
			want: []string{"Target"},
		},
		{
			name: "duplicates preserved in order",
			body: "[[A]] then [[B]] then [[A]]",
			want: []string{"A", "B", "A"},
		},
		{
			name: "whitespace trimmed",
			body: "[[  Padded Title  ]]",
			want: []string{"Padded Title"},
		},
		{
			name: "empty target dropped",
			body: "[[]] and [[ ]] and [[#section-only]]",
			want: nil,
		},
		{
			name: "no links",
			body: "plain text with [single] brackets",
			want: nil,
		},
		{
			name: "multiline body",
			body: "line one [[First]]\nline two [[Second]]\n",
			want: []string{"First", "Second"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractWikiLinks(tt.body)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractWikiLinks(%q) = %v, want %v", tt.body, got, tt.want)
			}
		})
	}
}

func TestFoldTitle(t *testing.T) {
	if foldTitle("  My Note  ") != "my note" {
		t.Errorf("foldTitle should lowercase and trim")
	}
	if foldTitle("UPPER") != foldTitle("upper") {
		t.Errorf("foldTitle should be case-insensitive")
	}
}
