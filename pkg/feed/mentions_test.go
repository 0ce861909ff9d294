package feed

import (
	"reflect"
	"testing"
)

func TestParseMentions(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", []string{}},
		{"single", "Ana", []string{"Ana"}},
		{"trims", "  Ana , Beto ", []string{"Ana", "Beto"}},
		{"drops empty tokens", ",Ana,,Beto,", []string{"Ana", "Beto"}},
		{"keeps duplicates and order", "Beto,Ana,Beto", []string{"Beto", "Ana", "Beto"}},
		{"only delimiters", " , , ", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseMentions(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseMentions(%q) = %#v, want %#v", tt.raw, got, tt.want)
			}
		})
	}
}
