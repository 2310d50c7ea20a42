package orchestrator

import (
	"reflect"
	"testing"

	"github.com/ShayCichocki/crew/pkg/models"
)

var mentionRoster = models.Roster{
	{ID: "lead", Name: "Lena", Role: "Team Lead"},
	{ID: "dev", Name: "Dev", Role: "Engineer"},
	{ID: "qa", Name: "Quinn", Role: "QA"},
}

func TestExtractMentions(t *testing.T) {
	tests := []struct {
		name    string
		content string
		self    string
		want    []string
	}{
		{"order preserved", "@qa check after @dev builds", "", []string{"qa", "dev"}},
		{"unknown dropped", "@ghost and @dev", "", []string{"dev"}},
		{"duplicates collapsed", "@dev @dev @DEV", "", []string{"dev"}},
		{"self excluded", "@lead note to self, @dev go", "lead", []string{"dev"}},
		{"trailing punctuation", "Thanks @dev.", "", []string{"dev"}},
		{"none", "no mentions here", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractMentions(tt.content, mentionRoster, tt.self)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSanitizer_Clean(t *testing.T) {
	s := NewSanitizer(mentionRoster)
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"own prefix", "Dev (Engineer): done with the parser", "done with the parser"},
		{"other member prefix", "Lena (Team Lead): @dev build it", "@dev build it"},
		{"bold prefix", "**Quinn (QA):** looks fine", "looks fine"},
		{"id prefix", "dev (Engineer): ok", "ok"},
		{"stacked prefixes", "Dev (Engineer): Dev (Engineer): hi", "hi"},
		{"per line", "Dev (Engineer): one\nLena (Team Lead): two", "one\ntwo"},
		{"system echo", "System (system): noted", "noted"},
		{"mid-sentence kept", "I told Dev (Engineer): later", "I told Dev (Engineer): later"},
		{"unknown speaker kept", "Bob (Ops): hi", "Bob (Ops): hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Clean(tt.in); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
