package textutil

import (
	"reflect"
	"testing"
)

func TestExtractHashtags(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "single hashtag",
			text: "New drop is live #fashion",
			want: []string{"fashion"},
		},
		{
			name: "multiple hashtags",
			text: "Behind the scenes #fashion with #style and #ootd",
			want: []string{"fashion", "ootd", "style"},
		},
		{
			name: "hashtags with underscores",
			text: "Using #street_wear and #Slow_Fashion",
			want: []string{"slow_fashion", "street_wear"},
		},
		{
			name: "hashtags with numbers",
			text: "Collection #ss26 and #top10",
			want: []string{"ss26", "top10"},
		},
		{
			name: "case-insensitive duplicates collapse",
			text: "check out #Fashion and #fashion!",
			want: []string{"fashion"},
		},
		{
			name: "no hashtags",
			text: "Just a plain caption without any tags",
			want: []string{},
		},
		{
			name: "empty string",
			text: "",
			want: []string{},
		},
		{
			name: "hashtag at start",
			text: "#launch day is here",
			want: []string{"launch"},
		},
		{
			name: "hashtag at end",
			text: "see you at the show #runway",
			want: []string{"runway"},
		},
		{
			name: "punctuation terminates the tag",
			text: "loving it #summer, also #beach.",
			want: []string{"beach", "summer"},
		},
		{
			name: "bare hash is not a tag",
			text: "the # symbol on its own",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractHashtags(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractHashtags() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeHashtag(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"#Fashion", "fashion"},
		{"  #Fashion  ", "fashion"},
		{"fashion", "fashion"},
		{"", ""},
		{"#", ""},
	}

	for _, tt := range tests {
		if got := NormalizeHashtag(tt.in); got != tt.want {
			t.Errorf("NormalizeHashtag(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeCreator(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"@StyleIcon", "styleicon"},
		{" styleicon ", "styleicon"},
		{"@", ""},
	}

	for _, tt := range tests {
		if got := NormalizeCreator(tt.in); got != tt.want {
			t.Errorf("NormalizeCreator(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
